package zip

import (
	"os"
	"testing"
)

func TestFileHeaderIsZip64(t *testing.T) {
	h := &FileHeader{}
	if h.isZip64() {
		t.Fatal("empty header should not be zip64")
	}
	h.ForceZip64 = true
	if !h.isZip64() {
		t.Fatal("ForceZip64 should force isZip64")
	}
	h = &FileHeader{CompressedSize64: uint32max}
	if !h.isZip64() {
		t.Fatal("sentinel compressed size should force isZip64")
	}
	h = &FileHeader{UncompressedSize64: uint32max + 1}
	if !h.isZip64() {
		t.Fatal("oversized uncompressed size should force isZip64")
	}
}

func TestFileHeaderIsDir(t *testing.T) {
	h := &FileHeader{Name: "a/b/"}
	if !h.IsDir() {
		t.Fatal("trailing slash should mark a directory")
	}
	h.Name = "a/b"
	if h.IsDir() {
		t.Fatal("no trailing slash should not mark a directory")
	}
}

func TestSetModeModeRoundTrip(t *testing.T) {
	h := &FileHeader{Name: "f"}
	h.SetMode(0644)
	if got := h.Mode().Perm(); got != 0644 {
		t.Fatalf("got perm %o, want 0644", got)
	}

	h = &FileHeader{Name: "d/"}
	h.SetMode(os.ModeDir | 0755)
	mode := h.Mode()
	if mode&os.ModeDir == 0 {
		t.Fatal("expected ModeDir bit set")
	}
	if got := mode.Perm(); got != 0755 {
		t.Fatalf("got perm %o, want 0755", got)
	}
}

func TestSetModeReadOnlyMirrorsMsdosBit(t *testing.T) {
	h := &FileHeader{Name: "f"}
	h.SetMode(0444)
	if h.ExternalAttrs&msdosReadOnly == 0 {
		t.Fatal("expected msdos read-only bit set for a mode with no write bits")
	}
}

func TestDetectUTF8PlainASCII(t *testing.T) {
	valid, require := detectUTF8("hello.txt")
	if !valid || require {
		t.Fatalf("got valid=%v require=%v, want valid=true require=false", valid, require)
	}
}

func TestDetectUTF8RequiresOutsideCP437Range(t *testing.T) {
	valid, require := detectUTF8("résumé.txt")
	if !valid || !require {
		t.Fatalf("got valid=%v require=%v, want valid=true require=true", valid, require)
	}
}

func TestDetectUTF8Invalid(t *testing.T) {
	valid, _ := detectUTF8(string([]byte{0xff, 0xfe}))
	if valid {
		t.Fatal("expected invalid UTF-8 to report valid=false")
	}
}

func TestEntryModeUnixCreator(t *testing.T) {
	e := &Entry{Name: "f", CreatorVersion: creatorUnix << 8, ExternalAttrs: uint32(0640) << 16}
	if got := e.Mode().Perm(); got != 0640 {
		t.Fatalf("got perm %o, want 0640", got)
	}
}

func TestEntryModeMsdosCreator(t *testing.T) {
	e := &Entry{Name: "d/", CreatorVersion: creatorFAT << 8, ExternalAttrs: msdosDir | msdosReadOnly}
	mode := e.Mode()
	if mode&os.ModeDir == 0 {
		t.Fatal("expected ModeDir bit set")
	}
	if mode&0222 != 0 {
		t.Fatal("expected read-only bit to clear write permissions")
	}
}
