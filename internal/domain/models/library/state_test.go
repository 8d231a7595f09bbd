package library

import (
	"errors"
	"testing"
)

func TestTransition(t *testing.T) {
	tests := []struct {
		name        string
		from        DatasetState
		event       Event
		want        DatasetState
		wantChanged bool
		wantErr     bool
	}{
		{"new starts upload", StateNew, UploadStarted{}, StateUploading, true, false},
		{"upload completes", StateUploading, UploadCompleted{StorageRef: "abc", Size: 3}, StateProcessing, true, false},
		{"analysis completes", StateProcessing, AnalysisCompleted{Peek: "x"}, StateOK, true, false},
		{"failure from new", StateNew, Failed{Detail: "bad"}, StateError, true, false},
		{"failure from uploading", StateUploading, Failed{Detail: "bad"}, StateError, true, false},
		{"failure from processing", StateProcessing, Failed{Detail: "bad"}, StateError, true, false},
		{"ok absorbs analysis", StateOK, AnalysisCompleted{}, StateOK, false, false},
		{"ok absorbs failure", StateOK, Failed{Detail: "late"}, StateOK, false, false},
		{"error absorbs upload", StateError, UploadCompleted{}, StateError, false, false},
		{"cannot skip processing", StateUploading, AnalysisCompleted{}, StateUploading, false, true},
		{"cannot regress to uploading", StateProcessing, UploadStarted{}, StateProcessing, false, true},
		{"cannot repeat upload", StateProcessing, UploadCompleted{}, StateProcessing, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, changed, err := Transition(tt.from, tt.event)
			if got != tt.want {
				t.Errorf("state = %s, want %s", got, tt.want)
			}
			if changed != tt.wantChanged {
				t.Errorf("changed = %v, want %v", changed, tt.wantChanged)
			}
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				var terr *TransitionError
				if !errors.As(err, &terr) {
					t.Errorf("expected *TransitionError, got %T", err)
				}
			}
		})
	}
}

func TestApply_Payloads(t *testing.T) {
	d := Dataset{ID: "d1", State: StateUploading, FileExt: "txt"}

	d, changed, err := Apply(d, UploadCompleted{StorageRef: "ref", Size: 11})
	if err != nil || !changed {
		t.Fatalf("upload: changed=%v err=%v", changed, err)
	}
	if d.StorageRef != "ref" || d.FileSize != 11 {
		t.Errorf("upload payload not applied: %+v", d)
	}

	d, _, err = Apply(d, AnalysisCompleted{Peek: "create_test", DataType: "text"})
	if err != nil {
		t.Fatal(err)
	}
	if d.State != StateOK || d.Peek != "create_test" || d.DataType != "text" {
		t.Errorf("analysis payload not applied: %+v", d)
	}
	if d.FileExt != "txt" {
		t.Errorf("empty FileExt in event must keep declared extension, got %q", d.FileExt)
	}

	// Terminal: a late failure leaves everything untouched
	after, changed, err := Apply(d, Failed{Detail: "late"})
	if err != nil || changed {
		t.Fatalf("terminal apply: changed=%v err=%v", changed, err)
	}
	if after.State != StateOK || after.Error != nil {
		t.Errorf("terminal dataset mutated: %+v", after)
	}
}

func TestApply_FailedDefaultsDetail(t *testing.T) {
	d, _, err := Apply(Dataset{State: StateProcessing}, Failed{})
	if err != nil {
		t.Fatal(err)
	}
	if d.Error == nil || *d.Error != "unknown error" {
		t.Errorf("expected default error detail, got %v", d.Error)
	}
}

func TestGroupByAction(t *testing.T) {
	perms := GroupByAction([]PermissionGrant{
		{RoleID: "r1", Action: ActionAccess},
		{RoleID: "r2", Action: ActionModify},
		{RoleID: "r1", Action: ActionModify},
	})
	if len(perms.AccessRoleIDs) != 1 || len(perms.ModifyRoleIDs) != 2 || len(perms.ManageRoleIDs) != 0 {
		t.Errorf("unexpected grouping: %+v", perms)
	}
}

func TestParseStoredPermissionValues(t *testing.T) {
	for _, a := range AllActions {
		got, err := ParseAction(string(a))
		if err != nil || got != a {
			t.Errorf("ParseAction(%q) = %q, %v", a, got, err)
		}
	}
	for _, k := range []ResourceKind{KindLibrary, KindFolder, KindDataset} {
		got, err := ParseResourceKind(string(k))
		if err != nil || got != k {
			t.Errorf("ParseResourceKind(%q) = %q, %v", k, got, err)
		}
	}

	if _, err := ParseAction("delete"); err == nil {
		t.Error("expected error for unknown action")
	}
	if _, err := ParseResourceKind("project"); err == nil {
		t.Error("expected error for unknown kind")
	}
}

func TestDataset_IsReady(t *testing.T) {
	for _, state := range []DatasetState{StateNew, StateUploading, StateProcessing, StateOK, StateError} {
		d := Dataset{State: state}
		if got := d.IsReady(); got != (state == StateOK) {
			t.Errorf("IsReady in %s = %v", state, got)
		}
	}
}
