package announce

import "testing"

func TestNew(t *testing.T) {
	a, err := New("pacball", "0.0.0.0:8881", "v1.0.0")
	if err != nil {
		t.Fatal(err)
	}
	if a.Port != 8881 {
		t.Errorf("got port %d", a.Port)
	}

	cfg := a.config()
	if cfg.Type != ServiceType || cfg.Domain != "local" || cfg.Name != "pacball" || cfg.Port != 8881 {
		t.Errorf("unexpected config %+v", cfg)
	}
	if cfg.Text["path"] != "/" || cfg.Text["version"] != "v1.0.0" {
		t.Errorf("unexpected txt records %v", cfg.Text)
	}
}

func TestNewInvalidAddress(t *testing.T) {
	for _, addr := range []string{"pacball", ":http", "0.0.0.0:0"} {
		_, err := New("pacball", addr, "")
		if err == nil {
			t.Errorf("expected error for %q", addr)
		}
	}
}
