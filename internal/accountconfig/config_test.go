package accountconfig

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/guilherme-santos/calfed/internal"
)

func TestParse_PreservesUnknownKeys(t *testing.T) {
	raw := json.RawMessage(`{"other":{"a":1},"folders":{"f1":{"name":"Team","type":"shared"}},"lastError":{"error":{"code":"remote_unavailable","message":"down"},"timestamp":1000}}`)

	c, err := Parse(raw)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if rf, ok := c.RememberedFolder("f1"); !ok || rf.ID != "f1" || rf.Name != "Team" {
		t.Fatalf("unexpected folder: %+v", rf)
	}
	if !errors.Is(c.Err(), internal.ErrRemoteUnavailable) {
		t.Fatalf("unexpected memo: %v", c.Err())
	}

	out, err := c.Marshal()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(out, &fields); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if string(fields["other"]) != `{"a":1}` {
		t.Fatalf("unknown key lost: %s", out)
	}
}

func TestParse_Empty(t *testing.T) {
	for _, raw := range []string{"", "null", "{}"} {
		c, err := Parse(json.RawMessage(raw))
		if err != nil {
			t.Fatalf("parse %q: %v", raw, err)
		}
		if len(c.Folders) != 0 || c.LastError != nil {
			t.Fatalf("expected empty config for %q", raw)
		}
	}
}

func TestRememberVisibleFolders_ReplacesWithinType(t *testing.T) {
	c := &InternalConfig{}
	c.RememberVisibleFolders(internal.FolderTypeShared, []internal.Folder{{ID: "f1", Name: "one"}})
	c.RememberVisibleFolders(internal.FolderTypePublic, []internal.Folder{{ID: "f2", Name: "two"}})
	c.SetColor("f2", "blue")

	changed := c.RememberVisibleFolders(internal.FolderTypeShared, []internal.Folder{{ID: "f3", Name: "three"}})
	if !changed {
		t.Fatalf("expected change")
	}
	if _, ok := c.RememberedFolder("f1"); ok {
		t.Fatalf("f1 should have been purged")
	}
	f2, ok := c.RememberedFolder("f2")
	if !ok || f2.Type != internal.FolderTypePublic || c.Color("f2") != "blue" {
		t.Fatalf("f2 should be untouched: %+v", f2)
	}
	f3, ok := c.RememberedFolder("f3")
	if !ok || f3.Type != internal.FolderTypeShared {
		t.Fatalf("f3 should be remembered: %+v", f3)
	}
}

func TestRememberVisibleFolders_Idempotent(t *testing.T) {
	c := &InternalConfig{}
	folders := []internal.Folder{{ID: "a", Name: "A"}, {ID: "b", Name: "B", ParentID: "a"}}
	if !c.RememberVisibleFolders(internal.FolderTypeShared, folders) {
		t.Fatalf("expected first call to change")
	}
	reversed := []internal.Folder{folders[1], folders[0]}
	if c.RememberVisibleFolders(internal.FolderTypeShared, reversed) {
		t.Fatalf("expected no change on identical listing")
	}
	c.SetSubscribed("a", false)
	if c.RememberVisibleFolders(internal.FolderTypeShared, folders) {
		t.Fatalf("expected no change")
	}
	if s := c.Subscribed("a"); s == nil || *s {
		t.Fatalf("subscription lost")
	}
}

func TestSetters_ReportChanges(t *testing.T) {
	c := &InternalConfig{}
	if !c.SetColor("f", "red") {
		t.Fatalf("first SetColor should change")
	}
	if c.SetColor("f", "red") {
		t.Fatalf("second SetColor should not change")
	}
	if !c.SetColor("f", "") {
		t.Fatalf("clearing should change")
	}
	if c.SetColor("f", "") {
		t.Fatalf("clearing twice should not change")
	}

	if c.Subscribed("f") != nil {
		t.Fatalf("subscribed should be unset")
	}
	if !c.SetSubscribed("f", true) || c.SetSubscribed("f", true) {
		t.Fatalf("unexpected SetSubscribed result")
	}
	if !c.SetSubscribed("f", false) {
		t.Fatalf("toggle should change")
	}
}

func TestSubscribedCount_IgnoresUntypedRecords(t *testing.T) {
	c := &InternalConfig{}
	c.RememberVisibleFolders(internal.FolderTypeShared, []internal.Folder{{ID: "team"}})
	c.SetColor("unknown", "red")
	if got := c.SubscribedCount(); got != 1 {
		t.Fatalf("SubscribedCount = %d, want 1", got)
	}

	if !c.RememberFolder(internal.Folder{ID: "pub", Type: internal.FolderTypePublic}) {
		t.Fatalf("RememberFolder should change")
	}
	if c.RememberFolder(internal.Folder{ID: "pub", Type: internal.FolderTypePublic}) {
		t.Fatalf("RememberFolder twice should not change")
	}
	if got := c.SubscribedCount(); got != 2 {
		t.Fatalf("SubscribedCount = %d, want 2", got)
	}
}

func TestRestoreFolder(t *testing.T) {
	c := &InternalConfig{}
	c.RememberFolder(internal.Folder{ID: "team", Type: internal.FolderTypeShared})
	prev, _ := c.RememberedFolder("team")

	c.SetColor("team", "red")
	c.SetSubscribed("team", false)
	c.RestoreFolder(prev)

	if c.Color("team") != "" || c.Subscribed("team") != nil {
		t.Fatalf("settings not restored: color=%q subscribed=%v", c.Color("team"), c.Subscribed("team"))
	}
}

func TestState(t *testing.T) {
	t0 := time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)
	c := &InternalConfig{}
	if got := c.State(t0, time.Hour); got != StateHealthy {
		t.Fatalf("state = %s", got)
	}
	c.SetLastError(internal.ErrRemoteUnavailable, t0)

	tests := []struct {
		after      time.Duration
		retryAfter time.Duration
		want       State
		connect    bool
		force      bool
	}{
		{30 * time.Second, time.Hour, StateDegradedRecent, false, false},
		{30 * time.Second, time.Hour, StateDegradedRecent, false, true},
		{70 * time.Second, time.Hour, StateDegraded, false, false},
		{70 * time.Second, time.Hour, StateDegraded, true, true},
		{time.Hour, time.Hour, StateDegradedRetryable, true, false},
		{70 * time.Second, time.Second, StateDegradedRetryable, true, false},
		{59 * time.Minute, 0, StateDegraded, false, false},
	}
	for _, tt := range tests {
		got := c.State(t0.Add(tt.after), tt.retryAfter)
		if got != tt.want {
			t.Errorf("after %v/%v: state = %s, want %s", tt.after, tt.retryAfter, got, tt.want)
		}
		if ShouldConnect(got, tt.force) != tt.connect {
			t.Errorf("after %v/%v force=%v: unexpected connect decision", tt.after, tt.retryAfter, tt.force)
		}
	}
}

func TestErrorRoundTrip(t *testing.T) {
	err := internal.Errorf(internal.CodeUnknownShare, "share gone: %w", internal.ErrUnknownShare)
	got := DecodeError(EncodeError(err))
	if !errors.Is(got, internal.ErrUnknownShare) {
		t.Fatalf("code lost: %v", got)
	}
	if got.Error() != err.Error() {
		t.Fatalf("message = %q, want %q", got.Error(), err.Error())
	}

	info := EncodeError(errors.New("boom"))
	if info.Code != internal.CodeInternal {
		t.Fatalf("code = %s", info.Code)
	}
}
