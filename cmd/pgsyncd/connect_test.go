package main

import (
	"testing"

	"github.com/spf13/pflag"
)

func newConnectionFlagSet() *pflag.FlagSet {
	f := pflag.NewFlagSet("sync", pflag.ContinueOnError)
	f.String("host", "localhost", "")
	f.Int("port", 5432, "")
	f.String("user", "postgres", "")
	f.String("password", "", "")
	f.String("sslmode", "", "")
	f.String("sslrootcert", "", "")
	return f
}

func TestConnectionFromFlagsRejectsInvalidSSLMode(t *testing.T) {
	f := newConnectionFlagSet()
	_ = f.Set("sslmode", "trust-me")
	if _, err := connectionFromFlags(f); err == nil {
		t.Fatal("expected error for invalid sslmode")
	}
}

func TestConnectionFromFlagsPasswordFromEnv(t *testing.T) {
	t.Setenv("PGPASSWORD", "secret")
	f := newConnectionFlagSet()
	_ = f.Set("host", "db.example.com")
	_ = f.Set("user", "pgsyncd")

	conn, err := connectionFromFlags(f)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if conn.Host != "db.example.com" || conn.User != "pgsyncd" {
		t.Fatalf("unexpected connection: %+v", conn)
	}
	if conn.Password != "secret" {
		t.Fatalf("expected password from PGPASSWORD, got %q", conn.Password)
	}
}

func TestConnectionFromFlagsValidSSLMode(t *testing.T) {
	t.Setenv("PGPASSWORD", "secret")
	f := newConnectionFlagSet()
	_ = f.Set("sslmode", "require")
	conn, err := connectionFromFlags(f)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if conn.SSLMode != "require" {
		t.Fatalf("expected sslmode require, got %q", conn.SSLMode)
	}
}
