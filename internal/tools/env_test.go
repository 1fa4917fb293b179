package tools

import (
	"os"
	"strings"
	"testing"
)

func TestComposeEnv_PrependsPathAndOverridesOthers(t *testing.T) {
	sep := string(os.PathListSeparator)
	base := []string{"HOME=/home/u", "PATH=/usr/bin" + sep + "/bin", "LANG=C"}
	got := ComposeEnv(base, map[string]string{
		"PATH":           "/opt/tool/bin" + sep + "/usr/bin",
		"LANG":           "en_US.UTF-8",
		"GEMINI_API_KEY": "k",
	})
	if base[1] != "PATH=/usr/bin"+sep+"/bin" {
		t.Fatalf("base was modified: %v", base)
	}
	if v, _ := LookupEnv(got, "PATH"); v != "/opt/tool/bin"+sep+"/usr/bin"+sep+"/bin" {
		t.Fatalf("PATH: %q", v)
	}
	if v, _ := LookupEnv(got, "LANG"); v != "en_US.UTF-8" {
		t.Fatalf("LANG: %q", v)
	}
	if v, ok := LookupEnv(got, "GEMINI_API_KEY"); !ok || v != "k" {
		t.Fatalf("GEMINI_API_KEY: %q %v", v, ok)
	}
	if got[0] != "HOME=/home/u" {
		t.Fatalf("base order not kept: %v", got)
	}
}

func TestComposeEnv_PathMissingFromBase(t *testing.T) {
	got := ComposeEnv([]string{"HOME=/h"}, map[string]string{"PATH": "/x"})
	if v, _ := LookupEnv(got, "PATH"); v != "/x" {
		t.Fatalf("PATH: %q", v)
	}
}

func TestComposeEnv_NoExtraCopiesBase(t *testing.T) {
	base := []string{"A=1"}
	got := ComposeEnv(base, nil)
	got[0] = "A=2"
	if base[0] != "A=1" {
		t.Fatalf("result aliases base")
	}
}

func TestComposeEnv_NewKeysSorted(t *testing.T) {
	got := ComposeEnv(nil, map[string]string{"B": "2", "A": "1", "C": "3"})
	if strings.Join(got, ",") != "A=1,B=2,C=3" {
		t.Fatalf("order: %v", got)
	}
}

func TestLookupEnv_LastValueWins(t *testing.T) {
	v, ok := LookupEnv([]string{"X=1", "=C:=C:\\", "X=2"}, "X")
	if !ok || v != "2" {
		t.Fatalf("got %q %v", v, ok)
	}
	if _, ok := LookupEnv(nil, "X"); ok {
		t.Fatalf("unexpected hit")
	}
}
