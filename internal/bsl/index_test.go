package bsl

import "testing"

func TestIndexHasFolder(t *testing.T) {
	ix := NewIndex()

	if ix.HasFolder("conn-1") {
		t.Fatal("unknown connection reported as having a folder")
	}

	cs := ix.Client("conn-1")
	if ix.HasFolder("conn-1") {
		t.Fatal("tracked but unreported connection counts as selected")
	}

	cs.FolderSelected = true
	if !ix.HasFolder("conn-1") {
		t.Fatal("reported folder not seen")
	}

	ix.Forget("conn-1")
	if ix.HasFolder("conn-1") {
		t.Fatal("forgotten connection still selected")
	}
}
