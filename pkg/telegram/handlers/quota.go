package handlers

import (
	"fmt"

	"github.com/dskvich/brahmos-bot/pkg/services"
)

func statusLine(status services.Status) string {
	if status.Premium {
		return "📊 <b>Your status:</b> 💎 Premium, unlimited access!"
	}
	return fmt.Sprintf("📊 <b>Your status:</b> 🆓 Free, %d images and %d speech clips per day",
		status.ImageLimit, status.TTSLimit)
}

func remainingText(premium bool, remaining, limit int) string {
	if premium {
		return "∞"
	}
	return fmt.Sprintf("%d/%d", remaining, limit)
}

// quotaLine ends captions of generated media.
func quotaLine(premium bool, remaining, limit int) string {
	if premium {
		return "💎 Premium user, unlimited access!"
	}
	return "📊 Remaining today: " + remainingText(false, remaining, limit)
}

// lowQuotaNotice warns a free user who is about to run out. It is empty otherwise.
func lowQuotaNotice(premium bool, remaining int, what string) string {
	if premium || remaining > lowQuotaWarning {
		return ""
	}
	return fmt.Sprintf("⚠️ Only %d %s left today!", remaining, what)
}
