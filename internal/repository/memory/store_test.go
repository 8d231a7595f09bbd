package memory

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"librarian/internal/domain"
	models "librarian/internal/domain/models/library"
)

func newTestRepos() (*Store, *LibraryRepository, *FolderRepository, *DatasetRepository, *PermissionRepository) {
	store := NewStore()
	return store,
		NewLibraryRepository(store).(*LibraryRepository),
		NewFolderRepository(store).(*FolderRepository),
		NewDatasetRepository(store).(*DatasetRepository),
		NewPermissionRepository(store).(*PermissionRepository)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func seedLibrary(t *testing.T, libs *LibraryRepository, folders *FolderRepository) (*models.Library, *models.Folder) {
	t.Helper()
	ctx := context.Background()

	lib := &models.Library{Name: "lib"}
	if err := libs.Create(ctx, lib); err != nil {
		t.Fatalf("create library: %v", err)
	}
	root := &models.Folder{LibraryID: lib.ID, Name: "lib"}
	if err := folders.Create(ctx, root); err != nil {
		t.Fatalf("create root: %v", err)
	}
	if err := libs.SetRootFolder(ctx, lib.ID, root.ID); err != nil {
		t.Fatalf("set root: %v", err)
	}
	lib.RootFolderID = root.ID
	return lib, root
}

func TestExecTx_RollsBackOnError(t *testing.T) {
	store, libs, folders, _, perms := newTestRepos()
	tm := NewTransactionManager(store, discardLogger())
	ctx := context.Background()

	var createdID string
	boom := errors.New("boom")
	err := tm.ExecTx(ctx, func(txCtx context.Context) error {
		lib := &models.Library{Name: "doomed"}
		if err := libs.Create(txCtx, lib); err != nil {
			return err
		}
		createdID = lib.ID
		if err := folders.Create(txCtx, &models.Folder{LibraryID: lib.ID, Name: "root"}); err != nil {
			return err
		}
		if err := perms.Grant(txCtx, models.PermissionGrant{ResourceID: lib.ID, Kind: models.KindLibrary, RoleID: "r", Action: models.ActionAccess}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}

	if _, err := libs.GetByID(ctx, createdID); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("library survived rollback: %v", err)
	}
	if len(store.folders) != 0 || len(store.grants) != 0 {
		t.Errorf("rollback left folders=%d grants=%d", len(store.folders), len(store.grants))
	}
}

func TestExecTx_HidesWritesFromConcurrentReaders(t *testing.T) {
	store, libs, _, _, _ := newTestRepos()
	tm := NewTransactionManager(store, discardLogger())
	ctx := context.Background()

	listed := make(chan []models.Library, 1)
	err := tm.ExecTx(ctx, func(txCtx context.Context) error {
		if err := libs.Create(txCtx, &models.Library{Name: "ghost"}); err != nil {
			return err
		}
		go func() {
			all, _ := libs.List(ctx, true)
			listed <- all
		}()
		select {
		case all := <-listed:
			t.Errorf("reader finished inside the transaction and saw %d libraries", len(all))
		case <-time.After(50 * time.Millisecond):
		}
		return errors.New("abort")
	})
	if err == nil {
		t.Fatal("expected abort")
	}

	select {
	case all := <-listed:
		if len(all) != 0 {
			t.Errorf("reader saw rolled back library: %+v", all)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("reader still blocked after rollback")
	}
}

func TestExecTx_RollbackRestoresUpdates(t *testing.T) {
	store, libs, folders, _, _ := newTestRepos()
	tm := NewTransactionManager(store, discardLogger())
	ctx := context.Background()
	lib, _ := seedLibrary(t, libs, folders)

	_ = tm.ExecTx(ctx, func(txCtx context.Context) error {
		name := "renamed"
		if _, err := libs.Update(txCtx, lib.ID, models.LibraryPatch{Name: &name}); err != nil {
			return err
		}
		return errors.New("abort")
	})

	got, err := libs.GetByID(ctx, lib.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Name != "lib" {
		t.Errorf("name = %q after rollback, want lib", got.Name)
	}
}

func TestExecTx_Commit(t *testing.T) {
	store, libs, _, _, _ := newTestRepos()
	tm := NewTransactionManager(store, discardLogger())
	ctx := context.Background()

	var id string
	err := tm.ExecTx(ctx, func(txCtx context.Context) error {
		lib := &models.Library{Name: "kept"}
		if err := libs.Create(txCtx, lib); err != nil {
			return err
		}
		id = lib.ID
		// nested call joins the outer transaction
		return tm.ExecTx(txCtx, func(inner context.Context) error {
			_, err := libs.SetDeleted(inner, id, true)
			return err
		})
	})
	if err != nil {
		t.Fatal(err)
	}

	got, err := libs.GetByID(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if !got.Deleted {
		t.Error("nested write was not committed")
	}
}

func TestLibraryRepository_ListHidesDeleted(t *testing.T) {
	_, libs, _, _, _ := newTestRepos()
	ctx := context.Background()

	for _, name := range []string{"b", "a", "c"} {
		if err := libs.Create(ctx, &models.Library{Name: name}); err != nil {
			t.Fatal(err)
		}
	}
	all, _ := libs.List(ctx, false)
	if len(all) != 3 || all[0].Name != "a" || all[2].Name != "c" {
		t.Fatalf("unexpected order: %+v", all)
	}

	if _, err := libs.SetDeleted(ctx, all[1].ID, true); err != nil {
		t.Fatal(err)
	}
	visible, _ := libs.List(ctx, false)
	withDeleted, _ := libs.List(ctx, true)
	if len(visible) != 2 || len(withDeleted) != 3 {
		t.Errorf("visible=%d withDeleted=%d", len(visible), len(withDeleted))
	}
}

func TestLibraryRepository_SetDeletedIdempotent(t *testing.T) {
	_, libs, _, _, _ := newTestRepos()
	ctx := context.Background()

	lib := &models.Library{Name: "x"}
	_ = libs.Create(ctx, lib)

	first, _ := libs.SetDeleted(ctx, lib.ID, true)
	second, _ := libs.SetDeleted(ctx, lib.ID, true)
	if !second.Deleted || !first.UpdatedAt.Equal(second.UpdatedAt) {
		t.Errorf("second delete changed the row: %+v -> %+v", first, second)
	}
}

func TestFolderRepository_Ancestors(t *testing.T) {
	_, libs, folders, _, _ := newTestRepos()
	ctx := context.Background()
	_, root := seedLibrary(t, libs, folders)

	a := &models.Folder{LibraryID: root.LibraryID, ParentID: &root.ID, Name: "a"}
	if err := folders.Create(ctx, a); err != nil {
		t.Fatal(err)
	}
	b := &models.Folder{LibraryID: root.LibraryID, ParentID: &a.ID, Name: "b"}
	if err := folders.Create(ctx, b); err != nil {
		t.Fatal(err)
	}

	chain, err := folders.Ancestors(ctx, b.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(chain) != 2 || chain[0].ID != a.ID || chain[1].ID != root.ID {
		t.Errorf("unexpected chain: %+v", chain)
	}

	rootChain, _ := folders.Ancestors(ctx, root.ID)
	if len(rootChain) != 0 {
		t.Errorf("root has ancestors: %+v", rootChain)
	}

	if _, err := folders.Ancestors(ctx, "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestFolderRepository_CreateRequiresParent(t *testing.T) {
	_, libs, folders, _, _ := newTestRepos()
	lib, _ := seedLibrary(t, libs, folders)

	missing := "nope"
	err := folders.Create(context.Background(), &models.Folder{LibraryID: lib.ID, ParentID: &missing, Name: "x"})
	if !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestDatasetRepository_CompareAndSwap(t *testing.T) {
	_, libs, folders, datasets, _ := newTestRepos()
	ctx := context.Background()
	lib, root := seedLibrary(t, libs, folders)

	ds := &models.Dataset{LibraryID: lib.ID, FolderID: root.ID, Name: "d", State: models.StateNew}
	if err := datasets.Create(ctx, ds); err != nil {
		t.Fatal(err)
	}

	next := *ds
	next.State = models.StateUploading
	ok, err := datasets.CompareAndSwapState(ctx, &next, models.StateNew)
	if err != nil || !ok {
		t.Fatalf("first swap: ok=%v err=%v", ok, err)
	}

	// Stale writer still believes the dataset is new
	ok, err = datasets.CompareAndSwapState(ctx, &next, models.StateNew)
	if err != nil || ok {
		t.Fatalf("stale swap: ok=%v err=%v", ok, err)
	}

	got, _ := datasets.GetByID(ctx, ds.ID)
	if got.State != models.StateUploading {
		t.Errorf("state = %s", got.State)
	}
}

func TestPermissionRepository_ReplaceForAction(t *testing.T) {
	_, _, _, _, perms := newTestRepos()
	ctx := context.Background()

	grant := models.PermissionGrant{ResourceID: "lib", Kind: models.KindLibrary, RoleID: "old", Action: models.ActionModify}
	_ = perms.Grant(ctx, grant)
	_ = perms.Grant(ctx, grant)
	_ = perms.Grant(ctx, models.PermissionGrant{ResourceID: "lib", Kind: models.KindLibrary, RoleID: "reader", Action: models.ActionAccess})

	if err := perms.ReplaceForAction(ctx, "lib", models.KindLibrary, models.ActionModify, []string{"b", "a", "a"}); err != nil {
		t.Fatal(err)
	}

	modify, _ := perms.ListByResourceAction(ctx, "lib", models.ActionModify)
	if len(modify) != 2 || modify[0] != "a" || modify[1] != "b" {
		t.Errorf("modify roles = %v", modify)
	}
	access, _ := perms.ListByResourceAction(ctx, "lib", models.ActionAccess)
	if len(access) != 1 {
		t.Errorf("access roles touched: %v", access)
	}

	_ = perms.Revoke(ctx, models.PermissionGrant{ResourceID: "lib", RoleID: "a", Action: models.ActionModify})
	all, _ := perms.ListByResource(ctx, "lib")
	if len(all) != 2 {
		t.Errorf("grants after revoke = %v", all)
	}
}
