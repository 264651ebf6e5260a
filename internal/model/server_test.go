package model_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/iwoov/shellmaster/internal/model"
)

func TestServerDescriptorRoundTrip(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	want := model.ServerList{
		Groups: []model.ServerGroup{{ID: "g1", Name: "Production"}},
		Servers: []model.ServerDescriptor{
			{
				ID:              "s1",
				Label:           "web-1",
				GroupID:         "g1",
				Host:            "example.com",
				Port:            22,
				Username:        "root",
				AuthType:        model.AuthPublicKey,
				PrivateKeyPath:  "/home/user/.ssh/id_ed25519",
				JumpHostID:      "s0",
				Proxy:           &model.ProxyConfig{Enabled: true, Type: model.ProxySocks5, Host: "proxy.local", Port: 1080},
				CreatedAt:       now,
				LastConnectedAt: &now,
			},
		},
	}

	data, err := json.Marshal(want)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var got model.ServerList
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if len(got.Servers) != 1 {
		t.Fatalf("got %d servers, want 1", len(got.Servers))
	}
	gotServer, wantServer := got.Servers[0], want.Servers[0]
	if gotServer.ID != wantServer.ID || gotServer.Host != wantServer.Host ||
		gotServer.Port != wantServer.Port || gotServer.AuthType != wantServer.AuthType ||
		gotServer.PrivateKeyPath != wantServer.PrivateKeyPath {
		t.Fatalf("round trip mismatch: got %+v, want %+v", gotServer, wantServer)
	}
	if !gotServer.CreatedAt.Equal(wantServer.CreatedAt) {
		t.Errorf("created_at mismatch: got %v, want %v", gotServer.CreatedAt, wantServer.CreatedAt)
	}
	if gotServer.LastConnectedAt == nil || !gotServer.LastConnectedAt.Equal(*wantServer.LastConnectedAt) {
		t.Errorf("last_connected_at mismatch")
	}
	if gotServer.Proxy == nil || *gotServer.Proxy != *wantServer.Proxy {
		t.Errorf("proxy mismatch: got %+v, want %+v", gotServer.Proxy, wantServer.Proxy)
	}
	if len(got.Groups) != 1 || got.Groups[0] != want.Groups[0] {
		t.Errorf("groups mismatch: got %+v, want %+v", got.Groups, want.Groups)
	}
}

func TestValidateRejectsBadPortAndMissingCredential(t *testing.T) {
	bad := model.ServerDescriptor{Port: 70000, AuthType: model.AuthPassword, PasswordEncrypted: "x"}
	if err := bad.Validate(); err == nil {
		t.Error("expected error for out-of-range port")
	}

	missingPassword := model.ServerDescriptor{Port: 22, AuthType: model.AuthPassword}
	if err := missingPassword.Validate(); err == nil {
		t.Error("expected error for missing password_encrypted")
	}

	missingKey := model.ServerDescriptor{Port: 22, AuthType: model.AuthPublicKey}
	if err := missingKey.Validate(); err == nil {
		t.Error("expected error for missing private_key_path")
	}

	ok := model.ServerDescriptor{Port: 22, AuthType: model.AuthPassword, PasswordEncrypted: "x"}
	if err := ok.Validate(); err != nil {
		t.Errorf("expected valid descriptor to pass, got %v", err)
	}
}
