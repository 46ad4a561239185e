package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path"
	"sync"
	"testing"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dskvich/brahmos-bot/pkg/domain"
	"github.com/dskvich/brahmos-bot/pkg/services"
)

type apiCall struct {
	method string
	form   map[string]string
}

type fakeTelegram struct {
	mu    sync.Mutex
	calls []apiCall
}

func (f *fakeTelegram) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	form := map[string]string{}
	if err := r.ParseMultipartForm(32 << 20); err == nil {
		for k, v := range r.MultipartForm.Value {
			form[k] = v[0]
		}
		for k := range r.MultipartForm.File {
			form[k] = "<file>"
		}
	}

	method := path.Base(r.URL.Path)
	f.mu.Lock()
	f.calls = append(f.calls, apiCall{method: method, form: form})
	f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	switch method {
	case "answerCallbackQuery", "sendChatAction":
		w.Write([]byte(`{"ok":true,"result":true}`))
	case "getMe":
		w.Write([]byte(`{"ok":true,"result":{"id":99,"is_bot":true,"first_name":"BrahMos","username":"brahmosbot"}}`))
	default:
		w.Write([]byte(`{"ok":true,"result":{"message_id":1,"date":0,"chat":{"id":100,"type":"private"}}}`))
	}
}

func (f *fakeTelegram) sent(method string) []apiCall {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []apiCall
	for _, c := range f.calls {
		if c.method == method {
			out = append(out, c)
		}
	}
	return out
}

func newBot(t *testing.T) (*bot.Bot, *fakeTelegram) {
	t.Helper()

	api := &fakeTelegram{}
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)

	b, err := bot.New("123:test", bot.WithServerURL(srv.URL), bot.WithSkipGetMe())
	require.NoError(t, err)
	return b, api
}

func textUpdate(chatType models.ChatType, text string) *models.Update {
	return &models.Update{ID: 1, Message: &models.Message{
		ID:   10,
		Chat: models.Chat{ID: 100, Type: chatType},
		From: &models.User{ID: 1, FirstName: "Ann", Username: "ann"},
		Text: text,
	}}
}

type fakeAccounts struct {
	status  services.Status
	granted []int64
	users   []services.User
}

func (f *fakeAccounts) Status(context.Context, int64) services.Status { return f.status }

func (f *fakeAccounts) Grant(_ context.Context, userID int64) (bool, error) {
	f.granted = append(f.granted, userID)
	return true, nil
}

func (f *fakeAccounts) Revoke(context.Context, int64) (bool, error) { return false, nil }

func (f *fakeAccounts) Users() []services.User { return f.users }

func (f *fakeAccounts) Stats() services.Stats {
	return services.Stats{Users: len(f.users), PremiumUsers: 0}
}

type fakeImages struct {
	err     error
	prompts []string
}

func (f *fakeImages) Generate(_ context.Context, _ int64, prompt string) (services.ImageResult, error) {
	f.prompts = append(f.prompts, prompt)
	if f.err != nil {
		return services.ImageResult{}, f.err
	}
	return services.ImageResult{Image: []byte("png"), Remaining: 42, Limit: 100}, nil
}

func (f *fakeImages) Edit(context.Context, int64, []byte, string) (services.ImageResult, error) {
	return services.ImageResult{}, nil
}

type fakeSpeaker struct{ res services.SpeechResult }

func (f fakeSpeaker) Synthesize(context.Context, int64, string) (services.SpeechResult, error) {
	return f.res, nil
}

type fakeReplier struct{ got []services.ChatRequest }

func (f *fakeReplier) Reply(_ context.Context, req services.ChatRequest) (string, error) {
	f.got = append(f.got, req)
	return "**Hello** there", nil
}

type fakePending struct {
	set   []domain.Pending
	taken bool
}

func (f *fakePending) SetPending(_ int64, p domain.Pending) error {
	f.set = append(f.set, p)
	return nil
}

func (f *fakePending) TakePending(int64, domain.PendingKind) (domain.Pending, bool) {
	if f.taken {
		return domain.Pending{}, false
	}
	f.taken = true
	return domain.Pending{}, true
}

func TestStartShowsFreeStatus(t *testing.T) {
	b, api := newBot(t)
	accounts := &fakeAccounts{status: services.Status{ImageLimit: 100, TTSLimit: 100}}

	Start(accounts)(context.Background(), b, textUpdate(models.ChatTypePrivate, "/start"))

	msgs := api.sent("sendMessage")
	require.Len(t, msgs, 1)
	assert.Contains(t, msgs[0].form["text"], "Hey Ann!")
	assert.Contains(t, msgs[0].form["text"], "100 images")
	assert.Contains(t, msgs[0].form["parse_mode"], "HTML")
	assert.Contains(t, msgs[0].form["reply_markup"], domain.MyInfoCallback)
}

func TestStartOffersUpgradeOnlyToFreeUsers(t *testing.T) {
	b, api := newBot(t)

	Start(&fakeAccounts{status: services.Status{ImageLimit: 100, TTSLimit: 100}})(context.Background(), b, textUpdate(models.ChatTypePrivate, "/start"))
	Start(&fakeAccounts{status: services.Status{Premium: true}})(context.Background(), b, textUpdate(models.ChatTypePrivate, "/start"))

	msgs := api.sent("sendMessage")
	require.Len(t, msgs, 2)
	assert.Contains(t, msgs[0].form["reply_markup"], domain.UpgradeCallback)
	assert.NotContains(t, msgs[1].form["reply_markup"], domain.UpgradeCallback)
}

func TestUpgrade(t *testing.T) {
	b, api := newBot(t)

	Upgrade("https://t.me/owner")(context.Background(), b, textUpdate(models.ChatTypePrivate, "/upgrade"))

	msgs := api.sent("sendMessage")
	require.Len(t, msgs, 1)
	assert.Contains(t, msgs[0].form["text"], "Upgrade to Premium")
	assert.Contains(t, msgs[0].form["reply_markup"], "https://t.me/owner")
	assert.Contains(t, msgs[0].form["reply_markup"], domain.BackToStartCallback)
}

func TestMyInfoFromButton(t *testing.T) {
	b, api := newBot(t)
	accounts := &fakeAccounts{status: services.Status{Premium: true}}

	update := &models.Update{CallbackQuery: &models.CallbackQuery{
		ID:   "cb",
		From: models.User{ID: 1, FirstName: "Ann"},
		Data: domain.MyInfoCallback,
		Message: models.MaybeInaccessibleMessage{
			Type:    models.MaybeInaccessibleMessageTypeMessage,
			Message: &models.Message{ID: 5, Chat: models.Chat{ID: 100, Type: models.ChatTypePrivate}},
		},
	}}
	MyInfo(accounts)(context.Background(), b, update)

	require.Len(t, api.sent("answerCallbackQuery"), 1)
	msgs := api.sent("sendMessage")
	require.Len(t, msgs, 1)
	assert.Contains(t, msgs[0].form["text"], "Images: ∞")
	assert.Contains(t, msgs[0].form["text"], "Premium")
}

func TestGenerateImage(t *testing.T) {
	t.Run("without prompt shows usage", func(t *testing.T) {
		b, api := newBot(t)
		images := &fakeImages{}

		GenerateImage(images)(context.Background(), b, textUpdate(models.ChatTypePrivate, "/image"))

		assert.Empty(t, images.prompts)
		require.Len(t, api.sent("sendMessage"), 1)
		assert.Contains(t, api.sent("sendMessage")[0].form["text"], "Usage")
	})

	t.Run("sends photo with remaining quota", func(t *testing.T) {
		b, api := newBot(t)
		images := &fakeImages{}

		GenerateImage(images)(context.Background(), b, textUpdate(models.ChatTypePrivate, "/image a <red> fox"))

		assert.Equal(t, []string{"a <red> fox"}, images.prompts)
		photos := api.sent("sendPhoto")
		require.Len(t, photos, 1)
		assert.Contains(t, photos[0].form["caption"], "a &lt;red&gt; fox")
		assert.Contains(t, photos[0].form["caption"], "Remaining today: 42/100")
		assert.Empty(t, api.sent("sendMessage"), "no low quota warning above the threshold")
	})

	t.Run("quota exceeded", func(t *testing.T) {
		b, api := newBot(t)
		images := &fakeImages{err: services.ErrQuotaExceeded}

		GenerateImage(images)(context.Background(), b, textUpdate(models.ChatTypePrivate, "/image fox"))

		assert.Empty(t, api.sent("sendPhoto"))
		require.Len(t, api.sent("sendMessage"), 1)
		assert.Contains(t, api.sent("sendMessage")[0].form["text"], "free limit")
	})
}

func TestImageFromPendingRunsOnce(t *testing.T) {
	b, api := newBot(t)
	images := &fakeImages{}
	pending := &fakePending{}
	handler := ImageFromPending(images, pending)

	handler(context.Background(), b, textUpdate(models.ChatTypePrivate, "a castle"))
	handler(context.Background(), b, textUpdate(models.ChatTypePrivate, "a castle"))

	assert.Equal(t, []string{"a castle"}, images.prompts)
	assert.Len(t, api.sent("sendPhoto"), 1)
}

func TestRequestEditStoresInstruction(t *testing.T) {
	b, api := newBot(t)
	pending := &fakePending{}

	RequestEdit(pending)(context.Background(), b, textUpdate(models.ChatTypePrivate, "/edit add a hat"))

	require.Len(t, pending.set, 1)
	assert.Equal(t, domain.Pending{Kind: domain.PendingEditPhoto, Payload: "add a hat"}, pending.set[0])
	assert.Contains(t, api.sent("sendMessage")[0].form["text"], "send me the photo")
}

func TestSayWarnsWhenQuotaIsLow(t *testing.T) {
	b, api := newBot(t)
	speaker := fakeSpeaker{res: services.SpeechResult{Audio: []byte("mp3"), Remaining: 3, Limit: 100}}

	Say(speaker)(context.Background(), b, textUpdate(models.ChatTypePrivate, "/say hello"))

	audio := api.sent("sendAudio")
	require.Len(t, audio, 1)
	assert.NotEmpty(t, audio[0].form["audio"])
	assert.Contains(t, audio[0].form["caption"], "3/100")

	msgs := api.sent("sendMessage")
	require.Len(t, msgs, 1)
	assert.Contains(t, msgs[0].form["text"], "Only 3 speech conversions left")
}

func TestChatAddsGroupContext(t *testing.T) {
	b, api := newBot(t)
	replier := &fakeReplier{}

	Chat(replier)(context.Background(), b, textUpdate(models.ChatTypeGroup, "brahmos, hi"))

	require.Len(t, replier.got, 1)
	assert.Equal(t, services.ChatRequest{ChatID: 100, UserName: "Ann", Text: "brahmos, hi", Context: "Group conversation"}, replier.got[0])
	assert.Contains(t, api.sent("sendMessage")[0].form["text"], "<b>Hello</b> there")
}

func TestEnableChatOnlyInPrivate(t *testing.T) {
	b, _ := newBot(t)
	enabled := map[int64]bool{}
	enabler := enablerFunc(func(id int64) { enabled[id] = true })

	EnableChat(enabler)(context.Background(), b, textUpdate(models.ChatTypeGroup, "/chat"))
	assert.Empty(t, enabled)

	EnableChat(enabler)(context.Background(), b, textUpdate(models.ChatTypePrivate, "/chat"))
	assert.True(t, enabled[1])
}

type enablerFunc func(int64)

func (f enablerFunc) EnableChat(userID int64) { f(userID) }

func TestAddPremium(t *testing.T) {
	b, api := newBot(t)
	accounts := &fakeAccounts{}

	AddPremium(accounts)(context.Background(), b, textUpdate(models.ChatTypePrivate, "/addpro nope"))
	assert.Empty(t, accounts.granted)
	assert.Contains(t, api.sent("sendMessage")[0].form["text"], "/addpro user_id")

	AddPremium(accounts)(context.Background(), b, textUpdate(models.ChatTypePrivate, "/addpro 5666606072"))
	assert.Equal(t, []int64{5666606072}, accounts.granted)
	assert.Contains(t, api.sent("sendMessage")[1].form["text"], "is now premium")
}

func TestHintIgnoresGroups(t *testing.T) {
	b, api := newBot(t)

	Hint()(context.Background(), b, textUpdate(models.ChatTypeGroup, "random chatter"))
	assert.Empty(t, api.sent("sendMessage"))

	Hint()(context.Background(), b, textUpdate(models.ChatTypePrivate, "hello?"))
	assert.Len(t, api.sent("sendMessage"), 1)
}

func TestCommandArgs(t *testing.T) {
	assert.Equal(t, "a cat", commandArgs("/image@brahmosbot   a cat "))
	assert.Equal(t, "", commandArgs("/image"))
	assert.Equal(t, "plain", commandArgs(" plain "))
}

type forgetter struct {
	chats   []int64
	cleared []int64
}

func (f *forgetter) Forget(chatID int64)       { f.chats = append(f.chats, chatID) }
func (f *forgetter) ClearPending(userID int64) { f.cleared = append(f.cleared, userID) }

func TestClearChat(t *testing.T) {
	b, api := newBot(t)
	f := &forgetter{}

	ClearChat(f, f)(context.Background(), b, textUpdate(models.ChatTypeGroup, "/new"))

	assert.Equal(t, []int64{100}, f.chats)
	assert.Equal(t, []int64{1}, f.cleared)
	assert.Contains(t, api.sent("sendMessage")[0].form["text"], "Conversation cleared")
}
