package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thedatamonk/spendly/internal/intent"
	"github.com/thedatamonk/spendly/internal/ledger"
	"github.com/thedatamonk/spendly/internal/session"
)

type fakeTranslator struct {
	mu       sync.Mutex
	results  map[string]intent.Result
	requests []intent.Request
}

func (f *fakeTranslator) Translate(ctx context.Context, req intent.Request) (intent.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	res, ok := f.results[req.Message]
	if !ok {
		return intent.Result{}, fmt.Errorf("%w: no canned result", intent.ErrTranslate)
	}
	return res, nil
}

func (f *fakeTranslator) last() intent.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[len(f.requests)-1]
}

type recorder struct {
	replies    []Reply
	retracted  []string
	retractErr error
}

func (r *recorder) Reply(ctx context.Context, rep Reply) (string, error) {
	r.replies = append(r.replies, rep)
	if rep.Prompt == nil {
		return "", nil
	}
	return fmt.Sprintf("msg-%d", len(r.replies)), nil
}

func (r *recorder) Retract(ctx context.Context, ref string) error {
	r.retracted = append(r.retracted, ref)
	return r.retractErr
}

func (r *recorder) last() Reply { return r.replies[len(r.replies)-1] }

type harness struct {
	eng   *Engine
	store *ledger.MemoryStore
	tr    *fakeTranslator
	out   *recorder
}

const conv = "chan:user"

func newHarness(t *testing.T, results map[string]intent.Result) *harness {
	t.Helper()
	mem := ledger.NewMemoryStore()
	return newHarnessFor(t, mem, mem, results)
}

func newHarnessFor(t *testing.T, mem *ledger.MemoryStore, store ledger.Store, results map[string]intent.Result) *harness {
	t.Helper()
	tr := &fakeTranslator{results: results}
	eng := New(tr, store, session.NewManager(session.NewMemoryStore(0)), nil)
	n := 0
	eng.newGroupID = func() string { n++; return fmt.Sprintf("group-%d", n) }
	return &harness{eng: eng, store: mem, tr: tr, out: &recorder{}}
}

func (h *harness) text(t *testing.T, msg string) Reply {
	t.Helper()
	require.NoError(t, h.eng.HandleText(context.Background(), conv, h.out, msg))
	return h.out.last()
}

func (h *harness) token(t *testing.T, tok string) Reply {
	t.Helper()
	require.NoError(t, h.eng.HandleToken(context.Background(), conv, h.out, tok))
	return h.out.last()
}

func (h *harness) active(t *testing.T) []ledger.Obligation {
	t.Helper()
	obs, err := h.store.List(context.Background(), ledger.Active)
	require.NoError(t, err)
	return obs
}

func (h *harness) seed(t *testing.T, o ledger.Obligation) ledger.Obligation {
	t.Helper()
	o, err := h.store.Create(context.Background(), o)
	require.NoError(t, err)
	return o
}

func f64(v float64) *float64 { return &v }

func tokens(p *Prompt) []string {
	var out []string
	for _, o := range p.Options {
		out = append(out, o.Token)
	}
	return out
}

func TestAddOneTimeAfterConfirm(t *testing.T) {
	h := newHarness(t, map[string]intent.Result{
		"Rahul owes me 1067": {
			Intent:  intent.Add{Persons: []string{"Rahul"}, Amount: f64(1067), Kind: ledger.OneTime},
			Message: "Rahul owes you ₹1,067. Should I log this?",
		},
	})

	r := h.text(t, "Rahul owes me 1067")
	require.NotNil(t, r.Prompt)
	assert.Equal(t, []string{TokenConfirm, TokenCancel}, tokens(r.Prompt))
	assert.Empty(t, h.active(t), "nothing stored before confirmation")

	r = h.token(t, TokenConfirm)
	assert.Equal(t, "Done! Added: Rahul (₹1,067)", r.Text)

	obs := h.active(t)
	require.Len(t, obs, 1)
	assert.Equal(t, "Rahul", obs[0].PersonName)
	assert.Equal(t, 1067.0, obs[0].TotalAmount)
	assert.Equal(t, 1067.0, obs[0].RemainingAmount)
	assert.Equal(t, ledger.Active, obs[0].Status)
	assert.Empty(t, obs[0].GroupID)
}

func TestConfirmTwiceMutatesOnce(t *testing.T) {
	h := newHarness(t, map[string]intent.Result{
		"add": {Intent: intent.Add{Persons: []string{"Rahul"}, Amount: f64(500)}, Message: "Log?"},
	})
	h.text(t, "add")
	h.token(t, TokenConfirm)

	r := h.token(t, TokenConfirm)
	assert.Equal(t, msgNothingPending, r.Text)
	assert.Len(t, h.active(t), 1)
}

func TestCancelClearsPending(t *testing.T) {
	h := newHarness(t, map[string]intent.Result{
		"add": {Intent: intent.Add{Persons: []string{"Rahul"}, Amount: f64(500)}, Message: "Log?"},
	})
	h.text(t, "add")
	assert.Equal(t, msgCancelled, h.token(t, TokenCancel).Text)
	assert.Equal(t, msgNothingPending, h.token(t, TokenConfirm).Text)
	assert.Empty(t, h.active(t))
}

func TestAddSplitAndRecurring(t *testing.T) {
	h := newHarness(t, map[string]intent.Result{
		"dinner": {
			Intent:  intent.Add{Persons: []string{"Rahul", "Priya"}, Amount: f64(1067), Kind: ledger.OneTime, Note: "Dinner split"},
			Message: "Split?",
		},
		"advance": {
			Intent: intent.Add{Persons: []string{"Sunita", "Kamla"}, Amount: f64(5000), Kind: ledger.Recurring,
				ExpectedPerCycle: f64(1000)},
			Message: "Advance?",
		},
	})

	h.text(t, "dinner")
	r := h.token(t, TokenConfirm)
	assert.Equal(t, "Done! Added: Rahul (₹1,067), Priya (₹1,067)", r.Text)

	h.text(t, "advance")
	h.token(t, TokenConfirm)

	groups := map[string]string{}
	for _, o := range h.active(t) {
		groups[o.PersonName] = o.GroupID
		if o.Kind == ledger.Recurring {
			assert.Equal(t, 5000.0, o.TotalAmount)
			require.NotNil(t, o.ExpectedPerCycle)
			assert.Equal(t, 1000.0, *o.ExpectedPerCycle)
		} else {
			assert.Equal(t, 1067.0, o.TotalAmount, "split arithmetic is done upstream")
		}
	}
	assert.Equal(t, "group-1", groups["Rahul"])
	assert.Equal(t, "group-1", groups["Priya"])
	assert.Empty(t, groups["Sunita"])
	assert.Empty(t, groups["Kamla"])
}

func TestAddMissingFields(t *testing.T) {
	h := newHarness(t, map[string]intent.Result{
		"no amount": {Intent: intent.Add{Persons: []string{"Rahul"}}, Message: "?"},
		"no person": {Intent: intent.Add{Amount: f64(100)}, Message: "?"},
	})
	for _, msg := range []string{"no amount", "no person"} {
		h.text(t, msg)
		assert.Equal(t, msgMissingFields, h.token(t, TokenConfirm).Text)
	}
	assert.Empty(t, h.active(t))

	_, err := h.eng.add(context.Background(), intent.Add{Persons: []string{"A"}})
	var missing *MissingFieldError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "amount", missing.Field)
}

func TestPartialThenFullSettle(t *testing.T) {
	h := newHarness(t, map[string]intent.Result{
		"Sunita paid 2000": {Intent: intent.Settle{Persons: []string{"sunita"}, Amount: f64(2000)}, Message: "Update?"},
		"Sunita paid 3800": {Intent: intent.Settle{Persons: []string{"Sunita"}, Amount: f64(3800)}, Message: "Update?"},
	})
	o := h.seed(t, ledger.Obligation{PersonName: "Sunita", Kind: ledger.Recurring, TotalAmount: 5800})

	h.text(t, "Sunita paid 2000")
	assert.Equal(t, "Sunita: paid ₹2,000, ₹3,800 remaining.", h.token(t, TokenConfirm).Text)

	got, err := h.store.Get(context.Background(), o.ID)
	require.NoError(t, err)
	assert.Equal(t, 3800.0, got.RemainingAmount)
	assert.Equal(t, ledger.Active, got.Status)
	require.Len(t, got.Transactions, 1)

	h.text(t, "Sunita paid 3800")
	assert.Equal(t, "Sunita: settled ₹3,800!", h.token(t, TokenConfirm).Text)

	got, err = h.store.Get(context.Background(), o.ID)
	require.NoError(t, err)
	assert.Equal(t, 0.0, got.RemainingAmount)
	assert.Equal(t, ledger.Settled, got.Status)
	assert.Len(t, got.Transactions, 2)
}

func TestDisambiguateDelete(t *testing.T) {
	h := newHarness(t, map[string]intent.Result{
		"delete Anjali": {Intent: intent.Delete{Persons: []string{"Anjali"}}, Message: "Delete Anjali's obligation?"},
	})
	first := h.seed(t, ledger.Obligation{PersonName: "Anjali", TotalAmount: 300})
	second := h.seed(t, ledger.Obligation{PersonName: "anjali", TotalAmount: 900, Kind: ledger.Recurring})

	h.text(t, "delete Anjali")
	r := h.token(t, TokenConfirm)
	require.NotNil(t, r.Prompt)
	assert.Equal(t, []string{ChoiceToken(0), ChoiceToken(1), TokenChoiceCancel}, tokens(r.Prompt))
	assert.Len(t, h.active(t), 2, "nothing deleted until a choice is made")

	r = h.token(t, ChoiceToken(0))
	assert.Equal(t, "Deleted obligation for Anjali.", r.Text)

	_, err := h.store.Get(context.Background(), first.ID)
	assert.ErrorIs(t, err, ledger.ErrNotFound)
	left := h.active(t)
	require.Len(t, left, 1)
	assert.Equal(t, second.ID, left[0].ID)

	assert.Equal(t, msgSessionExpired, h.token(t, ChoiceToken(0)).Text)
}

func TestDisambiguateSettleAppliesToChosenOnly(t *testing.T) {
	h := newHarness(t, map[string]intent.Result{
		"Anjali paid 100": {Intent: intent.Settle{Persons: []string{"Anjali"}, Amount: f64(100)}, Message: "Update?"},
	})
	a := h.seed(t, ledger.Obligation{PersonName: "Anjali", TotalAmount: 300, Kind: ledger.Recurring})
	b := h.seed(t, ledger.Obligation{PersonName: "Anjali", TotalAmount: 900, Kind: ledger.Recurring})

	h.text(t, "Anjali paid 100")
	h.token(t, TokenConfirm)
	assert.Equal(t, "Anjali: paid ₹100, ₹800 remaining.", h.token(t, ChoiceToken(1)).Text)

	ga, _ := h.store.Get(context.Background(), a.ID)
	gb, _ := h.store.Get(context.Background(), b.ID)
	assert.Equal(t, 300.0, ga.RemainingAmount)
	assert.Equal(t, 800.0, gb.RemainingAmount)
}

func TestChoiceCancelAndInvalidIndex(t *testing.T) {
	h := newHarness(t, map[string]intent.Result{
		"delete Anjali": {Intent: intent.Delete{Persons: []string{"Anjali"}}, Message: "Delete?"},
	})
	h.seed(t, ledger.Obligation{PersonName: "Anjali", TotalAmount: 300})
	h.seed(t, ledger.Obligation{PersonName: "Anjali", TotalAmount: 900})

	h.text(t, "delete Anjali")
	h.token(t, TokenConfirm)
	assert.Equal(t, msgCancelled, h.token(t, TokenChoiceCancel).Text)
	assert.Equal(t, msgSessionExpired, h.token(t, ChoiceToken(0)).Text)

	h.text(t, "delete Anjali")
	h.token(t, TokenConfirm)
	assert.Equal(t, msgInvalidChoice, h.token(t, ChoiceToken(7)).Text)
	assert.Equal(t, msgSessionExpired, h.token(t, ChoiceToken(0)).Text, "no retry after an invalid choice")
	assert.Len(t, h.active(t), 2)
}

func TestChoiceSettledMeanwhile(t *testing.T) {
	h := newHarness(t, map[string]intent.Result{
		"Anjali paid": {Intent: intent.Settle{Persons: []string{"Anjali"}}, Message: "Settle?"},
	})
	a := h.seed(t, ledger.Obligation{PersonName: "Anjali", TotalAmount: 300})
	b := h.seed(t, ledger.Obligation{PersonName: "Anjali", TotalAmount: 900})

	h.text(t, "Anjali paid")
	require.NotNil(t, h.token(t, TokenConfirm).Prompt)
	_, err := h.store.Settle(context.Background(), a.ID)
	require.NoError(t, err)

	assert.Equal(t, msgCandidateGone, h.token(t, ChoiceToken(0)).Text)
	got, err := h.store.Get(context.Background(), a.ID)
	require.NoError(t, err)
	assert.Len(t, got.Transactions, 1, "no second payment on a settled record")
	left := h.active(t)
	require.Len(t, left, 1)
	assert.Equal(t, b.ID, left[0].ID)
}

func TestUnrecognisedToken(t *testing.T) {
	h := newHarness(t, nil)
	assert.Equal(t, msgPromptExpired, h.token(t, "confirm_yes").Text)
	assert.Equal(t, msgSessionExpired, h.token(t, TokenChoiceCancel).Text)
}

func TestMultiPersonBatchStopsAtDisambiguation(t *testing.T) {
	h := newHarness(t, map[string]intent.Result{
		"settle all": {Intent: intent.Settle{Persons: []string{"Ghost", "Rahul", "Anjali", "Priya"}}, Message: "Settle?"},
	})
	rahul := h.seed(t, ledger.Obligation{PersonName: "Rahul", TotalAmount: 500})
	h.seed(t, ledger.Obligation{PersonName: "Anjali", TotalAmount: 300})
	h.seed(t, ledger.Obligation{PersonName: "Anjali", TotalAmount: 900})
	priya := h.seed(t, ledger.Obligation{PersonName: "Priya", TotalAmount: 700})

	h.text(t, "settle all")
	r := h.token(t, TokenConfirm)
	require.NotNil(t, r.Prompt)
	lines := strings.Split(r.Text, "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "No active obligation found for Ghost.", lines[0])
	assert.Equal(t, "Rahul: settled ₹500!", lines[1])
	assert.Contains(t, lines[2], "Anjali has 2 active obligations")

	got, _ := h.store.Get(context.Background(), rahul.ID)
	assert.Equal(t, ledger.Settled, got.Status)
	got, _ = h.store.Get(context.Background(), priya.ID)
	assert.Equal(t, ledger.Active, got.Status, "persons after the disambiguation are not processed")
}

func TestEditRecomputesRemaining(t *testing.T) {
	h := newHarness(t, map[string]intent.Result{
		"Sunita total 6000": {Intent: intent.Edit{Persons: []string{"Sunita"}, Amount: f64(6000)}, Message: "Update?"},
		"Sunita nothing":    {Intent: intent.Edit{Persons: []string{"Sunita"}}, Message: "Update?"},
	})
	o := h.seed(t, ledger.Obligation{PersonName: "Sunita", TotalAmount: 5800, Kind: ledger.Recurring})

	h.text(t, "Sunita total 6000")
	assert.Equal(t, "Updated Sunita: total ₹6,000, ₹6,000 remaining.", h.token(t, TokenConfirm).Text)
	got, _ := h.store.Get(context.Background(), o.ID)
	assert.Equal(t, 6000.0, got.RemainingAmount)

	h.text(t, "Sunita nothing")
	assert.Equal(t, "Nothing to change for Sunita.", h.token(t, TokenConfirm).Text)
}

func TestAmbiguousKeepsBoundedHistory(t *testing.T) {
	h := newHarness(t, map[string]intent.Result{
		"paid someone": {Intent: intent.Add{}, Ambiguous: true, Question: "Who did you pay, and how much?"},
		"hm":           {Intent: intent.Add{}, Ambiguous: true, Message: "Could you give me a name?"},
		"Rahul, 500":   {Intent: intent.Add{Persons: []string{"Rahul"}, Amount: f64(500)}, Message: "Log?"},
	})

	r := h.text(t, "paid someone")
	assert.Equal(t, "Who did you pay, and how much?", r.Text)
	assert.Nil(t, r.Prompt)

	assert.Equal(t, "Could you give me a name?", h.text(t, "hm").Text, "falls back to the message")
	require.Len(t, h.tr.last().History, 2)

	for i := 0; i < 5; i++ {
		h.text(t, "hm")
	}
	h.text(t, "Rahul, 500")
	assert.Len(t, h.tr.last().History, session.MaxHistory)

	h.token(t, TokenConfirm)
	h.text(t, "paid someone")
	assert.Empty(t, h.tr.last().History, "history cleared once the conversation resolved")
}

func TestQuery(t *testing.T) {
	h := newHarness(t, map[string]intent.Result{
		"pending?":     {Intent: intent.Query{}},
		"sunita?":      {Intent: intent.Query{Persons: []string{"SUNITA"}}},
		"who is ravi?": {Intent: intent.Query{Persons: []string{"Ravi"}}},
	})
	h.seed(t, ledger.Obligation{PersonName: "Sunita", TotalAmount: 3800})
	h.seed(t, ledger.Obligation{PersonName: "Rahul", TotalAmount: 500})

	all := h.text(t, "pending?").Text
	assert.Contains(t, all, "Sunita")
	assert.Contains(t, all, "Rahul")
	assert.Contains(t, all, "Total pending: ₹4,300")

	one := h.text(t, "sunita?").Text
	assert.Contains(t, one, "Sunita")
	assert.NotContains(t, one, "Rahul")

	assert.Equal(t, "No pending obligations for Ravi.", h.text(t, "who is ravi?").Text)
}

func TestChitchatAndUnknown(t *testing.T) {
	h := newHarness(t, map[string]intent.Result{
		"hey":      {Intent: intent.Chitchat{}, Message: "Hey there!"},
		"weather?": {Intent: intent.OffTopic{}, Message: "I only track money."},
		"transfer": {Intent: intent.Unknown{Name: "transfer"}, Message: "?"},
	})
	assert.Equal(t, "Hey there!", h.text(t, "hey").Text)
	assert.Equal(t, "I only track money.", h.text(t, "weather?").Text)
	assert.Equal(t, msgUnknownAction, h.text(t, "transfer").Text)
}

func TestTranslatorFailure(t *testing.T) {
	h := newHarness(t, nil)
	r := h.text(t, "gibberish")
	assert.Equal(t, msgNotUnderstood, r.Text)
	assert.Nil(t, r.Prompt)
	assert.Equal(t, msgNothingPending, h.token(t, TokenConfirm).Text)
}

func TestNewMessageRetractsStalePrompt(t *testing.T) {
	h := newHarness(t, map[string]intent.Result{
		"add":   {Intent: intent.Add{Persons: []string{"Rahul"}, Amount: f64(500)}, Message: "Log?"},
		"hello": {Intent: intent.Chitchat{}, Message: "Hi!"},
	})
	h.out.retractErr = errors.New("message gone")

	h.text(t, "add")
	h.text(t, "hello")
	assert.Equal(t, []string{"msg-1"}, h.out.retracted)
	assert.Equal(t, msgNothingPending, h.token(t, TokenConfirm).Text, "superseded action is dropped")

	h.text(t, "hello")
	assert.Len(t, h.out.retracted, 1, "nothing pending, nothing to retract")
}

type failingStore struct {
	*ledger.MemoryStore
}

func (failingStore) Settle(ctx context.Context, id string) (ledger.Obligation, error) {
	return ledger.Obligation{}, errors.New("store unavailable")
}

func TestStoreFailureStopsBatch(t *testing.T) {
	mem := ledger.NewMemoryStore()
	h := newHarnessFor(t, mem, failingStore{mem}, map[string]intent.Result{
		"settle both": {Intent: intent.Settle{Persons: []string{"Rahul", "Priya"}}, Message: "Settle?"},
	})
	h.seed(t, ledger.Obligation{PersonName: "Rahul", TotalAmount: 500})
	h.seed(t, ledger.Obligation{PersonName: "Priya", TotalAmount: 700})

	h.text(t, "settle both")
	r := h.token(t, TokenConfirm)
	assert.Equal(t, "Something went wrong: settle: store unavailable", r.Text)
	assert.Len(t, h.active(t), 2)
}

func TestConversationsAreIndependent(t *testing.T) {
	h := newHarness(t, map[string]intent.Result{
		"add": {Intent: intent.Add{Persons: []string{"Rahul"}, Amount: f64(500)}, Message: "Log?"},
	})
	ctx := context.Background()
	require.NoError(t, h.eng.HandleText(ctx, "a", h.out, "add"))
	require.NoError(t, h.eng.HandleToken(ctx, "b", h.out, TokenConfirm))
	assert.Equal(t, msgNothingPending, h.out.last().Text)

	require.NoError(t, h.eng.HandleToken(ctx, "a", h.out, TokenConfirm))
	assert.Len(t, h.active(t), 1)
}
