package encryption

import (
	"bytes"
	"path/filepath"
	"testing"

	"filmcat/internal/config"
)

func newTestAgeEncryptor(t *testing.T) *AgeEncryptor {
	t.Helper()
	dir := t.TempDir()
	return NewAgeEncryptor(config.EncryptionConfig{
		Type:           "age",
		PublicKeyPath:  filepath.Join(dir, "keys", "filmcat.pub"),
		PrivateKeyPath: filepath.Join(dir, "keys", "filmcat.key"),
	})
}

func TestAgeEncryptor_Setup(t *testing.T) {
	t.Parallel()

	t.Run("configures keys", func(t *testing.T) {
		t.Parallel()
		e := newTestAgeEncryptor(t)
		if e.IsConfigured() {
			t.Fatal("IsConfigured() = true before Setup")
		}
		if err := e.Setup("correct horse"); err != nil {
			t.Fatalf("Setup() error = %v", err)
		}
		if !e.IsConfigured() {
			t.Error("IsConfigured() = false after Setup")
		}
	})

	t.Run("refuses to replace existing keys", func(t *testing.T) {
		t.Parallel()
		e := newTestAgeEncryptor(t)
		if err := e.Setup("correct horse"); err != nil {
			t.Fatalf("Setup() error = %v", err)
		}
		if err := e.Setup("another"); err == nil {
			t.Error("second Setup() expected error")
		}
	})

	t.Run("rejects empty passphrase", func(t *testing.T) {
		t.Parallel()
		e := newTestAgeEncryptor(t)
		if err := e.Setup(""); err == nil {
			t.Error("Setup(\"\") expected error")
		}
	})
}

func TestAgeEncryptor_SealAndRestoreBackup(t *testing.T) {
	t.Parallel()

	backup := []byte(`{"users":[{"id":1,"email":"jean@email.com","password_hash":"x"}]}`)
	e := newTestAgeEncryptor(t)
	if err := e.Setup("correct horse"); err != nil {
		t.Fatalf("Setup() error = %v", err)
	}

	var sealed bytes.Buffer
	if err := e.Encrypt(bytes.NewReader(backup), &sealed); err != nil {
		t.Fatalf("Encrypt() error = %v", err)
	}
	if bytes.Contains(sealed.Bytes(), []byte("jean@email.com")) {
		t.Error("sealed backup leaks plaintext")
	}

	ctx, err := e.Unlock("correct horse")
	if err != nil {
		t.Fatalf("Unlock() error = %v", err)
	}
	var opened bytes.Buffer
	if err := ctx.Decrypt(&sealed, &opened); err != nil {
		t.Fatalf("Decrypt() error = %v", err)
	}
	if !bytes.Equal(opened.Bytes(), backup) {
		t.Errorf("restored %q, want %q", opened.Bytes(), backup)
	}
}

func TestAgeEncryptor_UnlockWrongPassphrase(t *testing.T) {
	t.Parallel()
	e := newTestAgeEncryptor(t)
	if err := e.Setup("correct horse"); err != nil {
		t.Fatalf("Setup() error = %v", err)
	}
	if _, err := e.Unlock("battery staple"); err == nil {
		t.Error("Unlock() with wrong passphrase should return error")
	}
}

func TestAgeEncryptor_EncryptBeforeSetup(t *testing.T) {
	t.Parallel()
	e := newTestAgeEncryptor(t)
	var buf bytes.Buffer
	if err := e.Encrypt(bytes.NewReader([]byte("data")), &buf); err == nil {
		t.Error("Encrypt() before Setup should return error")
	}
}

func TestNewEncryptorFromConfig(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.EncryptionConfig
		wantNil bool
		wantErr bool
	}{
		{name: "none", cfg: config.EncryptionConfig{Type: "none"}, wantNil: true},
		{name: "empty type", cfg: config.EncryptionConfig{}, wantNil: true},
		{name: "age", cfg: config.EncryptionConfig{Type: "age", PublicKeyPath: "/k/a.pub", PrivateKeyPath: "/k/a.key"}},
		{name: "age without paths", cfg: config.EncryptionConfig{Type: "age"}, wantErr: true},
		{name: "test", cfg: config.EncryptionConfig{Type: "test"}},
		{name: "unknown", cfg: config.EncryptionConfig{Type: "rot13"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			enc, err := NewEncryptorFromConfig(tt.cfg)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("NewEncryptorFromConfig() error = %v", err)
			}
			if (enc == nil) != tt.wantNil {
				t.Errorf("encryptor nil = %v, want %v", enc == nil, tt.wantNil)
			}
		})
	}
}
