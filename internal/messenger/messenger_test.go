package messenger

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/LeventeLantos/signal-relay/internal/cache"
	"github.com/LeventeLantos/signal-relay/internal/commands"
	"github.com/LeventeLantos/signal-relay/internal/metrics"
	"github.com/LeventeLantos/signal-relay/internal/model"
	"github.com/LeventeLantos/signal-relay/internal/signald"
)

const testChannel = "+15550001111"

type sentMessage struct {
	recipient string
	body      string
}

type fakeTransport struct {
	mu     sync.Mutex
	sent   []sentMessage
	expiry []string
}

func (f *fakeTransport) Send(_ context.Context, recipient string, msg signald.Request) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentMessage{recipient: recipient, body: msg.MessageBody})
	return nil
}

func (f *fakeTransport) SetExpiration(_ context.Context, _, member string, _ int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.expiry = append(f.expiry, member)
	return nil
}

func (f *fakeTransport) sentTo(recipient string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var bodies []string
	for _, s := range f.sent {
		if s.recipient == recipient {
			bodies = append(bodies, s.body)
		}
	}
	return bodies
}

func (f *fakeTransport) sendCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

type fakeCounts struct {
	mu         sync.Mutex
	broadcasts int
	hotlines   int
	cmds       int
}

func (f *fakeCounts) CountBroadcast(context.Context, string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.broadcasts++
	return nil
}

func (f *fakeCounts) CountHotline(context.Context, string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hotlines++
	return nil
}

func (f *fakeCounts) CountCommand(context.Context, string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cmds++
	return nil
}

func newTestMessenger(t *testing.T, sysadmins ...string) (*Messenger, *fakeTransport, *fakeCounts) {
	t.Helper()

	transport := &fakeTransport{}
	counts := &fakeCounts{}
	m := New(transport, counts, cache.NewMemoryReplyIDs(), metrics.NewCounters(), Config{
		BroadcastBatchSize:     2,
		BroadcastBatchInterval: 5 * time.Millisecond,
		WelcomeDelay:           5 * time.Millisecond,
		SysadminNumbers:        sysadmins,
	}, nil)
	return m, transport, counts
}

func testChannelFixture(hotlineOn bool) *model.Channel {
	return &model.Channel{
		PhoneNumber:   testChannel,
		Name:          "Ocean Rescue",
		HotlineOn:     hotlineOn,
		MessageExpiry: 7 * 24 * time.Hour,
		Memberships: []model.Membership{
			{MemberPhoneNumber: "+15551110000", Type: model.MemberTypeAdmin, Language: "EN"},
			{MemberPhoneNumber: "+15551110001", Type: model.MemberTypeAdmin, Language: "FR"},
			{MemberPhoneNumber: "+15552220000", Type: model.MemberTypeSubscriber, Language: "ES"},
			{MemberPhoneNumber: "+15552220001", Type: model.MemberTypeSubscriber, Language: "EN"},
		},
	}
}

func adminDispatchable(channel *model.Channel, body string) commands.Dispatchable {
	return commands.Dispatchable{
		Channel: channel,
		Sender:  model.Sender{PhoneNumber: "+15551110000", Type: model.MemberTypeAdmin, Language: "EN"},
		Message: signald.Request{Type: signald.TypeSend, Username: channel.PhoneNumber, MessageBody: body},
	}
}

func subscriberDispatchable(channel *model.Channel, body string) commands.Dispatchable {
	return commands.Dispatchable{
		Channel: channel,
		Sender:  model.Sender{PhoneNumber: "+15552220000", Type: model.MemberTypeSubscriber, Language: "ES"},
		Message: signald.Request{Type: signald.TypeSend, Username: channel.PhoneNumber, MessageBody: body},
	}
}

func TestBroadcast_HeadersPerRecipient(t *testing.T) {
	t.Parallel()

	m, transport, counts := newTestMessenger(t)
	channel := testChannelFixture(true)
	d := adminDispatchable(channel, "hello")

	res := commands.Result{Status: commands.StatusSuccess, Command: commands.Broadcast, Message: "hello"}
	if err := m.Dispatch(context.Background(), res, d); err != nil {
		t.Fatalf("Dispatch() error: %v", err)
	}

	// Subscribers see the channel name, admins the localized broadcast tag.
	got := transport.sentTo("+15552220000")
	if len(got) != 1 || got[0] != "[Ocean Rescue]\nhello" {
		t.Fatalf("unexpected subscriber broadcast: %v", got)
	}
	got = transport.sentTo("+15551110000")
	if len(got) != 1 || got[0] != "[BROADCAST]\nhello" {
		t.Fatalf("unexpected admin broadcast: %v", got)
	}
	got = transport.sentTo("+15551110001")
	if len(got) != 1 || got[0] != "[DIFFUSER]\nhello" {
		t.Fatalf("unexpected french admin broadcast: %v", got)
	}

	if transport.sendCount() != len(channel.Memberships) {
		t.Fatalf("expected %d sends, got %d", len(channel.Memberships), transport.sendCount())
	}
	if counts.broadcasts != 1 {
		t.Fatalf("expected one broadcast count, got %d", counts.broadcasts)
	}
}

func TestBroadcast_WithAttachmentsReachesEveryoneInBatches(t *testing.T) {
	t.Parallel()

	m, transport, _ := newTestMessenger(t)
	channel := testChannelFixture(true)
	d := adminDispatchable(channel, "look")
	d.Message.Attachments = []signald.Attachment{{Filename: "photo.jpg"}}

	res := commands.Result{Status: commands.StatusSuccess, Command: commands.Broadcast, Message: "look"}
	if err := m.Dispatch(context.Background(), res, d); err != nil {
		t.Fatalf("Dispatch() error: %v", err)
	}

	if transport.sendCount() != len(channel.Memberships) {
		t.Fatalf("expected %d sends, got %d", len(channel.Memberships), transport.sendCount())
	}
}

func TestHotline_DisabledNotifiesSender(t *testing.T) {
	t.Parallel()

	m, transport, counts := newTestMessenger(t)
	channel := testChannelFixture(false)
	d := subscriberDispatchable(channel, "help")

	res := commands.Result{Status: commands.StatusNoop, Command: commands.None}
	if err := m.Dispatch(context.Background(), res, d); err != nil {
		t.Fatalf("Dispatch() error: %v", err)
	}

	if transport.sendCount() != 1 {
		t.Fatalf("expected only the notice send, got %d", transport.sendCount())
	}
	got := transport.sentTo("+15552220000")
	if len(got) != 1 || !strings.Contains(got[0], "línea directa") {
		t.Fatalf("expected spanish hotline notice, got %v", got)
	}
	if counts.hotlines != 0 {
		t.Fatalf("a refused hotline message must not be counted")
	}
}

func TestHotline_ForwardsAnonymouslyToAdmins(t *testing.T) {
	t.Parallel()

	m, transport, counts := newTestMessenger(t)
	channel := testChannelFixture(true)
	d := subscriberDispatchable(channel, "something happened")

	res := commands.Result{Status: commands.StatusNoop, Command: commands.None}
	if err := m.Dispatch(context.Background(), res, d); err != nil {
		t.Fatalf("Dispatch() error: %v", err)
	}

	got := transport.sentTo("+15551110000")
	if len(got) != 1 || got[0] != "[HOTLINE #1]\nsomething happened" {
		t.Fatalf("unexpected english admin forward: %v", got)
	}
	got = transport.sentTo("+15551110001")
	if len(got) != 1 || got[0] != "[HOTLINE #1]\nsomething happened" {
		t.Fatalf("unexpected french admin forward: %v", got)
	}

	// Sender phone number never appears in a forwarded body.
	for _, admin := range []string{"+15551110000", "+15551110001"} {
		for _, body := range transport.sentTo(admin) {
			if strings.Contains(body, "+15552220000") {
				t.Fatalf("forward leaked the sender number: %q", body)
			}
		}
	}

	confirmation := transport.sentTo("+15552220000")
	if len(confirmation) != 1 || !strings.Contains(confirmation[0], "[Ocean Rescue]") {
		t.Fatalf("expected spanish confirmation naming the channel, got %v", confirmation)
	}
	if counts.hotlines != 1 {
		t.Fatalf("expected one hotline count, got %d", counts.hotlines)
	}
}

func TestHotline_SameSenderKeepsReplyID(t *testing.T) {
	t.Parallel()

	m, transport, _ := newTestMessenger(t)
	channel := testChannelFixture(true)
	d := subscriberDispatchable(channel, "first")

	res := commands.Result{Status: commands.StatusNoop, Command: commands.None}
	if err := m.Dispatch(context.Background(), res, d); err != nil {
		t.Fatalf("first Dispatch() error: %v", err)
	}
	d.Message.MessageBody = "second"
	if err := m.Dispatch(context.Background(), res, d); err != nil {
		t.Fatalf("second Dispatch() error: %v", err)
	}

	got := transport.sentTo("+15551110000")
	if len(got) != 2 {
		t.Fatalf("expected two forwards, got %v", got)
	}
	for _, body := range got {
		if !strings.HasPrefix(body, "[HOTLINE #1]") {
			t.Fatalf("expected stable reply id #1, got %q", body)
		}
	}
}

func TestCommandReply_SentAndCounted(t *testing.T) {
	t.Parallel()

	m, transport, counts := newTestMessenger(t)
	channel := testChannelFixture(true)
	d := adminDispatchable(channel, "RENAME Coastal Watch")

	res := commands.Result{Status: commands.StatusSuccess, Command: commands.Rename, Message: "Channel renamed."}
	if err := m.Dispatch(context.Background(), res, d); err != nil {
		t.Fatalf("Dispatch() error: %v", err)
	}

	got := transport.sentTo("+15551110000")
	if len(got) != 1 || got[0] != "Channel renamed." {
		t.Fatalf("unexpected reply: %v", got)
	}
	if counts.cmds != 1 {
		t.Fatalf("expected one command count, got %d", counts.cmds)
	}
}

func TestCommandReply_InfoFromSysadminNotCounted(t *testing.T) {
	t.Parallel()

	m, transport, counts := newTestMessenger(t, "+15551110000")
	channel := testChannelFixture(true)
	d := adminDispatchable(channel, "INFO")

	res := commands.Result{Status: commands.StatusSuccess, Command: commands.Info, Message: "channel info"}
	if err := m.Dispatch(context.Background(), res, d); err != nil {
		t.Fatalf("Dispatch() error: %v", err)
	}

	if got := transport.sentTo("+15551110000"); len(got) != 1 {
		t.Fatalf("the reply itself must still be sent, got %v", got)
	}
	if counts.cmds != 0 {
		t.Fatalf("sysadmin INFO pings must not bump the command count")
	}
}

func TestCommandReply_PrivateSuccessSkipsResponse(t *testing.T) {
	t.Parallel()

	m, transport, _ := newTestMessenger(t)
	channel := testChannelFixture(true)
	d := adminDispatchable(channel, "PRIVATE fyi")

	res := commands.Result{Status: commands.StatusSuccess, Command: commands.Private, Message: "sent"}
	if err := m.Dispatch(context.Background(), res, d); err != nil {
		t.Fatalf("Dispatch() error: %v", err)
	}

	if transport.sendCount() != 0 {
		t.Fatalf("expected no response for a successful PRIVATE, got %d sends", transport.sendCount())
	}
}

func TestNotificationsSentOnSuccess(t *testing.T) {
	t.Parallel()

	m, transport, _ := newTestMessenger(t)
	channel := testChannelFixture(true)
	d := adminDispatchable(channel, "ADD +15553330000")

	res := commands.Result{
		Status:  commands.StatusSuccess,
		Command: commands.Add,
		Message: "Member added.",
		Payload: []string{"+15553330000"},
		Notifications: []commands.Notification{
			{Recipient: "+15553330000", Message: "Welcome to Ocean Rescue!"},
		},
	}
	if err := m.Dispatch(context.Background(), res, d); err != nil {
		t.Fatalf("Dispatch() error: %v", err)
	}

	got := transport.sentTo("+15553330000")
	if len(got) != 1 || got[0] != "Welcome to Ocean Rescue!" {
		t.Fatalf("expected welcome notification, got %v", got)
	}

	// New member timer is aligned with the channel default after the delay.
	transport.mu.Lock()
	expiry := append([]string(nil), transport.expiry...)
	transport.mu.Unlock()
	if len(expiry) != 1 || expiry[0] != "+15553330000" {
		t.Fatalf("expected expiry update for the new member, got %v", expiry)
	}
}

func TestNotificationsSkippedOnFailure(t *testing.T) {
	t.Parallel()

	m, transport, _ := newTestMessenger(t)
	channel := testChannelFixture(true)
	d := adminDispatchable(channel, "ADD nonsense")

	res := commands.Result{
		Status:  commands.StatusError,
		Command: commands.Add,
		Message: "That is not a phone number.",
		Notifications: []commands.Notification{
			{Recipient: "+15553330000", Message: "never delivered"},
		},
	}
	if err := m.Dispatch(context.Background(), res, d); err != nil {
		t.Fatalf("Dispatch() error: %v", err)
	}

	if got := transport.sentTo("+15553330000"); len(got) != 0 {
		t.Fatalf("expected no notification on failure, got %v", got)
	}
	if got := transport.sentTo("+15551110000"); len(got) != 1 {
		t.Fatalf("expected the error reply to the sender, got %v", got)
	}
}

func TestJoinSetsExpiryForSender(t *testing.T) {
	t.Parallel()

	m, transport, _ := newTestMessenger(t)
	channel := testChannelFixture(true)
	d := subscriberDispatchable(channel, "JOIN")

	res := commands.Result{Status: commands.StatusSuccess, Command: commands.Join, Message: "You are subscribed."}
	if err := m.Dispatch(context.Background(), res, d); err != nil {
		t.Fatalf("Dispatch() error: %v", err)
	}

	transport.mu.Lock()
	expiry := append([]string(nil), transport.expiry...)
	transport.mu.Unlock()
	if len(expiry) != 1 || expiry[0] != "+15552220000" {
		t.Fatalf("expected expiry update for the joining sender, got %v", expiry)
	}
}
