package domain

// Callback data attached to inline keyboard buttons.
const (
	HelpCallback        = "help"
	MyInfoCallback      = "my_info"
	QuickChatCallback   = "quick_chat"
	QuickImageCallback  = "quick_image"
	QuickTTSCallback    = "quick_tts"
	QuickEditCallback   = "quick_edit"
	UpgradeCallback     = "upgrade_premium"
	BackToStartCallback = "back_to_start"
)
