package engine

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/droidtune-io/droidtune/internal/audit"
	"github.com/droidtune-io/droidtune/internal/ir"
	"github.com/droidtune-io/droidtune/internal/ledger"
	"github.com/droidtune-io/droidtune/internal/remote"
)

// fakeStore simulates remote state as a map; a missing key is Absent.
type fakeStore struct {
	values        map[ir.Key]ir.Value
	getErr        map[ir.Key]error
	setErr        map[ir.Key]error
	applicableErr map[ir.Key]error
	notApplicable map[ir.Key]bool
	getCalls      map[ir.Key]int
	setCalls      map[ir.Key]int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		values:        map[ir.Key]ir.Value{},
		getErr:        map[ir.Key]error{},
		setErr:        map[ir.Key]error{},
		applicableErr: map[ir.Key]error{},
		notApplicable: map[ir.Key]bool{},
		getCalls:      map[ir.Key]int{},
		setCalls:      map[ir.Key]int{},
	}
}

func (f *fakeStore) Get(ctx context.Context, key ir.Key) (ir.Value, error) {
	f.getCalls[key]++
	if err := f.getErr[key]; err != nil {
		return ir.Absent, err
	}
	v, ok := f.values[key]
	if !ok {
		return ir.Absent, nil
	}
	return v, nil
}

func (f *fakeStore) Set(ctx context.Context, key ir.Key, value ir.Value) error {
	f.setCalls[key]++
	if err := f.setErr[key]; err != nil {
		return err
	}
	if value.Present() {
		f.values[key] = value
	} else {
		delete(f.values, key)
	}
	return nil
}

func (f *fakeStore) Applicable(ctx context.Context, key ir.Key) (bool, error) {
	if err := f.applicableErr[key]; err != nil {
		return false, err
	}
	return !f.notApplicable[key], nil
}

func (f *fakeStore) snapshot() map[ir.Key]ir.Value {
	out := make(map[ir.Key]ir.Value, len(f.values))
	for k, v := range f.values {
		out[k] = v
	}
	return out
}

func strptr(s string) *string { return &s }

func newTestEngine(t *testing.T, cfg ir.RunConfig, store ValueStore, policy Policy) (*Engine, *audit.Log, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	log, err := audit.New(&buf)
	require.NoError(t, err)

	eng := New(cfg, store, ledger.New(), log, policy)
	eng.Retry = &RetryPolicy{MaxRetries: 0} // keep tests fast
	return eng, log, &buf
}

func TestApply_RecordsOriginalAndApplies(t *testing.T) {
	store := newFakeStore()
	key := ir.Key{Scope: ir.ScopeSettingsGlobal, Name: "anim_scale"}
	store.values[key] = ir.NewValue("1.0")

	eng, log, _ := newTestEngine(t, ir.RunConfig{}, store, nil)
	rec, err := eng.Apply(context.Background(), &ir.Mutation{Scope: key.Scope, Name: key.Name, Value: strptr("0.5")})
	require.NoError(t, err)

	assert.Equal(t, ir.OutcomeApplied, rec.Outcome)
	assert.Equal(t, ir.NewValue("0.5"), store.values[key])
	assert.Equal(t, 1, log.Summary().Applied)

	entries := eng.Ledger().Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, ir.NewValue("1.0"), entries[0].Original)
}

func TestApply_SameKeyTwice_LedgerKeepsFirstOriginal(t *testing.T) {
	store := newFakeStore()
	key := ir.Key{Scope: ir.ScopeSettingsGlobal, Name: "anim_scale"}
	store.values[key] = ir.NewValue("1.0")

	eng, log, _ := newTestEngine(t, ir.RunConfig{}, store, nil)
	ctx := context.Background()

	_, err := eng.Apply(ctx, &ir.Mutation{Scope: key.Scope, Name: key.Name, Value: strptr("0.5")})
	require.NoError(t, err)
	_, err = eng.Apply(ctx, &ir.Mutation{Scope: key.Scope, Name: key.Name, Value: strptr("0.2")})
	require.NoError(t, err)

	assert.Equal(t, 2, log.Summary().Applied)
	assert.Equal(t, ir.NewValue("0.2"), store.values[key])

	entries := eng.Ledger().Entries()
	require.Len(t, entries, 1, "one ledger entry per key")
	assert.Equal(t, ir.NewValue("1.0"), entries[0].Original, "original is pre-run value, not intermediate")
	assert.Equal(t, 1, store.getCalls[key], "original read exactly once")
}

func TestApply_NotApplicable(t *testing.T) {
	store := newFakeStore()
	key := ir.Key{Scope: ir.ScopePackage, Name: "com.example.missing"}
	store.notApplicable[key] = true

	eng, _, _ := newTestEngine(t, ir.RunConfig{}, store, nil)
	rec, err := eng.Apply(context.Background(), &ir.Mutation{Scope: key.Scope, Name: key.Name, Value: strptr("disabled-user")})
	require.NoError(t, err)

	assert.Equal(t, ir.OutcomeSkipped, rec.Outcome)
	assert.Equal(t, ir.ReasonNotApplicable, rec.Message)
	assert.Zero(t, eng.Ledger().Len(), "no ledger entry for inapplicable key")
	assert.Zero(t, store.setCalls[key])
}

func TestApply_ApplicabilityCheckFailure(t *testing.T) {
	store := newFakeStore()
	key := ir.Key{Scope: ir.ScopePackage, Name: "com.example.app"}
	store.applicableErr[key] = &remote.Error{Kind: remote.KindTransport, Op: "pm list packages"}

	eng, _, _ := newTestEngine(t, ir.RunConfig{}, store, nil)
	rec, err := eng.Apply(context.Background(), &ir.Mutation{Scope: key.Scope, Name: key.Name, Value: nil})
	require.NoError(t, err)

	assert.Equal(t, ir.OutcomeFailed, rec.Outcome)
	assert.True(t, strings.HasPrefix(rec.Message, ir.ReasonNotDeterminable+": "), rec.Message)
	assert.Zero(t, store.getCalls[key])
	assert.Zero(t, store.setCalls[key])
	assert.Zero(t, eng.Ledger().Len())
}

func TestApply_UnreadableOriginalIsNeverMutated(t *testing.T) {
	store := newFakeStore()
	key := ir.Key{Scope: ir.ScopeSettingsGlobal, Name: "x"}
	store.getErr[key] = &remote.Error{Kind: remote.KindTransport, Op: "adb shell settings get global x"}

	eng, _, _ := newTestEngine(t, ir.RunConfig{}, store, nil)
	rec, err := eng.Apply(context.Background(), &ir.Mutation{Scope: key.Scope, Name: key.Name, Value: strptr("1")})
	require.NoError(t, err)

	assert.Equal(t, ir.OutcomeFailed, rec.Outcome)
	assert.Contains(t, rec.Message, ir.ReasonUnreadable)
	assert.Zero(t, store.setCalls[key], "a key with unknown original must never be written")
	assert.Zero(t, eng.Ledger().Len())
}

func TestApply_PolicyDenied(t *testing.T) {
	store := newFakeStore()
	key := ir.Key{Scope: ir.ScopePackage, Name: "com.android.systemui"}
	store.values[key] = ir.NewValue("enabled")

	policy := NewProtectList([]string{"com.android.*"})
	eng, _, _ := newTestEngine(t, ir.RunConfig{}, store, policy)

	rec, err := eng.Apply(context.Background(), &ir.Mutation{Scope: key.Scope, Name: key.Name, Value: nil})
	require.NoError(t, err)

	assert.Equal(t, ir.OutcomeSkipped, rec.Outcome)
	assert.Contains(t, rec.Message, ir.ReasonPolicy)
	assert.Zero(t, store.getCalls[key], "protected keys are never even read")
	assert.Zero(t, eng.Ledger().Len())
}

func TestApply_WriteRejected(t *testing.T) {
	store := newFakeStore()
	key := ir.Key{Scope: ir.ScopeSettingsSecure, Name: "locked"}
	store.values[key] = ir.NewValue("old")
	store.setErr[key] = &remote.Error{Kind: remote.KindRejected, Op: "settings put", Output: "SecurityException"}

	eng, log, _ := newTestEngine(t, ir.RunConfig{}, store, nil)
	rec, err := eng.Apply(context.Background(), &ir.Mutation{Scope: key.Scope, Name: key.Name, Value: strptr("new")})
	require.NoError(t, err)

	assert.Equal(t, ir.OutcomeFailed, rec.Outcome)
	assert.Contains(t, rec.Message, ir.ReasonWriteRejected)
	assert.Equal(t, 1, log.Summary().Failed)
	// the original stays recorded: the failed write may have partially
	// landed, and reverting a key we did not change is harmless
	assert.Equal(t, 1, eng.Ledger().Len())
}

func TestDryRun_NoWritesNoLedger(t *testing.T) {
	store := newFakeStore()
	dns := ir.Key{Scope: ir.ScopeSettingsSecure, Name: "private_dns_mode"}
	// current value is Absent (not in map)

	eng, log, _ := newTestEngine(t, ir.RunConfig{DryRun: true}, store, nil)
	profile := &ir.Profile{Mutations: []*ir.Mutation{
		{Scope: dns.Scope, Name: dns.Name, Value: strptr("hostname")},
		{Scope: ir.ScopeSettingsGlobal, Name: "anim_scale", Value: strptr("0.5")},
	}}

	summary, err := eng.Run(context.Background(), profile, nil)
	require.NoError(t, err)

	assert.Equal(t, 2, summary.Simulated)
	assert.Equal(t, 2, log.Summary().Simulated)
	for key, n := range store.setCalls {
		assert.Zero(t, n, "unexpected write to %s", key)
	}
	assert.Zero(t, eng.Ledger().Len(), "dry-run must not produce revert entries")
}

func TestDryRun_UnreadableStillFails(t *testing.T) {
	store := newFakeStore()
	key := ir.Key{Scope: ir.ScopeSysprop, Name: "x"}
	store.getErr[key] = &remote.Error{Kind: remote.KindTransport, Op: "getprop"}

	eng, _, _ := newTestEngine(t, ir.RunConfig{DryRun: true}, store, nil)
	rec, err := eng.Apply(context.Background(), &ir.Mutation{Scope: key.Scope, Name: key.Name, Value: strptr("1")})
	require.NoError(t, err)
	assert.Equal(t, ir.OutcomeFailed, rec.Outcome)
}

func TestRun_EmitsEventsAndContinuesPastFailures(t *testing.T) {
	store := newFakeStore()
	bad := ir.Key{Scope: ir.ScopeSettingsGlobal, Name: "bad"}
	store.getErr[bad] = &remote.Error{Kind: remote.KindTransport, Op: "settings get"}
	store.values[ir.Key{Scope: ir.ScopeSettingsGlobal, Name: "good"}] = ir.NewValue("1")

	eng, _, _ := newTestEngine(t, ir.RunConfig{}, store, nil)
	profile := &ir.Profile{Mutations: []*ir.Mutation{
		{Scope: ir.ScopeSettingsGlobal, Name: "bad", Value: strptr("2")},
		{Scope: ir.ScopeSettingsGlobal, Name: "good", Value: strptr("2")},
	}}

	var events []Event
	summary, err := eng.Run(context.Background(), profile, func(e Event) { events = append(events, e) })
	require.NoError(t, err)

	require.Len(t, events, 2)
	assert.Equal(t, ir.OutcomeFailed, events[0].Outcome)
	assert.Equal(t, ir.OutcomeApplied, events[1].Outcome)
	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, 1, summary.Applied)
}

func TestRun_InterruptedKeepsCompletedAuditRecords(t *testing.T) {
	store := newFakeStore()
	for _, name := range []string{"a", "b", "c", "d"} {
		store.values[ir.Key{Scope: ir.ScopeSettingsGlobal, Name: name}] = ir.NewValue("1")
	}

	ctx, cancel := context.WithCancel(context.Background())
	eng, _, buf := newTestEngine(t, ir.RunConfig{}, store, nil)

	profile := &ir.Profile{Mutations: []*ir.Mutation{
		{Scope: ir.ScopeSettingsGlobal, Name: "a", Value: strptr("2")},
		{Scope: ir.ScopeSettingsGlobal, Name: "b", Value: strptr("2")},
		{Scope: ir.ScopeSettingsGlobal, Name: "c", Value: strptr("2")},
		{Scope: ir.ScopeSettingsGlobal, Name: "d", Value: strptr("2")},
	}}

	applied := 0
	_, err := eng.Run(ctx, profile, func(e Event) {
		applied++
		if applied == 2 {
			cancel()
		}
	})
	require.Error(t, err)

	s, err := audit.ReadSummary(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, 2, s.Total(), "exactly the completed records survive")
}

func TestRevert_RestoresFirstObservedState(t *testing.T) {
	store := newFakeStore()
	anim := ir.Key{Scope: ir.ScopeSettingsGlobal, Name: "anim_scale"}
	dns := ir.Key{Scope: ir.ScopeSettingsSecure, Name: "private_dns_mode"}
	pkg := ir.Key{Scope: ir.ScopePackage, Name: "com.example.app"}

	store.values[anim] = ir.NewValue("1.0")
	store.values[pkg] = ir.NewValue("enabled")
	// dns starts Absent

	eng, _, _ := newTestEngine(t, ir.RunConfig{}, store, nil)
	ctx := context.Background()

	profile := &ir.Profile{Mutations: []*ir.Mutation{
		{Scope: anim.Scope, Name: anim.Name, Value: strptr("0.5")},
		{Scope: anim.Scope, Name: anim.Name, Value: strptr("0.2")},
		{Scope: dns.Scope, Name: dns.Name, Value: strptr("hostname")},
		{Scope: pkg.Scope, Name: pkg.Name, Value: strptr("disabled-user")},
	}}
	_, err := eng.Run(ctx, profile, nil)
	require.NoError(t, err)

	require.Equal(t, 3, eng.Ledger().Len())

	_, err = eng.Revert(ctx, eng.Ledger().Entries(), nil)
	require.NoError(t, err)

	assert.Equal(t, ir.NewValue("1.0"), store.values[anim])
	assert.Equal(t, ir.NewValue("enabled"), store.values[pkg])
	_, dnsSet := store.values[dns]
	assert.False(t, dnsSet, "absent original must be deleted on revert")
}

func TestRevert_Idempotent(t *testing.T) {
	store := newFakeStore()
	anim := ir.Key{Scope: ir.ScopeSettingsGlobal, Name: "anim_scale"}
	store.values[anim] = ir.NewValue("1.0")

	eng, _, _ := newTestEngine(t, ir.RunConfig{}, store, nil)
	ctx := context.Background()

	profile := &ir.Profile{Mutations: []*ir.Mutation{
		{Scope: anim.Scope, Name: anim.Name, Value: strptr("0.5")},
		{Scope: ir.ScopeSettingsGlobal, Name: "other", Value: strptr("x")},
		{Scope: ir.ScopeSysprop, Name: "debug.y", Value: strptr("1")},
	}}
	_, err := eng.Run(ctx, profile, nil)
	require.NoError(t, err)

	entries := eng.Ledger().Entries()
	_, err = eng.Revert(ctx, entries, nil)
	require.NoError(t, err)
	first := store.snapshot()

	_, err = eng.Revert(ctx, entries, nil)
	require.NoError(t, err)
	second := store.snapshot()

	assert.Equal(t, first, second, "reverting twice equals reverting once")
}

func TestRevert_DryRunWritesNothing(t *testing.T) {
	store := newFakeStore()
	key := ir.Key{Scope: ir.ScopeSettingsGlobal, Name: "a"}

	eng, log, _ := newTestEngine(t, ir.RunConfig{DryRun: true}, store, nil)
	entries := []ledger.Entry{{Key: key, Original: ir.NewValue("1")}}

	summary, err := eng.Revert(context.Background(), entries, nil)
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Simulated)
	assert.Equal(t, 1, log.Summary().Simulated)
	assert.Zero(t, store.setCalls[key])
}
