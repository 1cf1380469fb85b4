package host

import (
	"errors"
	"reflect"
	"testing"
)

func TestBrowserOpener_Open(t *testing.T) {
	tests := []struct {
		goos     string
		wantName string
		wantArgs []string
	}{
		{"darwin", "open", []string{"https://example.com/sdk"}},
		{"linux", "xdg-open", []string{"https://example.com/sdk"}},
		{"windows", "rundll32", []string{"url.dll,FileProtocolHandler", "https://example.com/sdk"}},
	}

	for _, tt := range tests {
		t.Run(tt.goos, func(t *testing.T) {
			var gotName string
			var gotArgs []string
			b := &BrowserOpener{
				goos: tt.goos,
				start: func(name string, args ...string) error {
					gotName = name
					gotArgs = args
					return nil
				},
			}

			if err := b.Open("https://example.com/sdk"); err != nil {
				t.Fatalf("Open() error: %v", err)
			}
			if gotName != tt.wantName {
				t.Errorf("command = %q, want %q", gotName, tt.wantName)
			}
			if !reflect.DeepEqual(gotArgs, tt.wantArgs) {
				t.Errorf("args = %v, want %v", gotArgs, tt.wantArgs)
			}
		})
	}
}

func TestBrowserOpener_Unsupported(t *testing.T) {
	b := &BrowserOpener{goos: "plan9", start: func(string, ...string) error {
		t.Fatal("start should not be called")
		return nil
	}}
	if err := b.Open("https://example.com"); err == nil {
		t.Error("expected error for unsupported platform")
	}
}

func TestBrowserOpener_StartError(t *testing.T) {
	want := errors.New("no handler")
	b := &BrowserOpener{goos: "linux", start: func(string, ...string) error { return want }}
	if err := b.Open("https://example.com"); !errors.Is(err, want) {
		t.Errorf("Open() error = %v, want %v", err, want)
	}
}
