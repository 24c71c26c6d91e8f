package mysqlstore

import (
	"context"
	"os"
	"testing"

	"github.com/joho/godotenv"
	"github.com/stretchr/testify/require"

	"batepapo/internal/store"
	"batepapo/internal/store/storetest"
)

func TestMain(m *testing.M) {
	// プロジェクトルートの.envを読み込み
	_ = godotenv.Load("../../../.env")
	os.Exit(m.Run())
}

// setupTestStore テスト用データベース接続をセットアップ
func setupTestStore(t *testing.T) *Store {
	t.Helper()

	host := os.Getenv("DB_HOST")
	if host == "" {
		t.Skip("Skipping: DB_HOST not set")
	}
	port := os.Getenv("DB_PORT")
	if port == "" {
		port = "3306"
	}

	ctx := context.Background()
	s, err := Open(ctx, Config{
		Host:     host,
		Port:     port,
		User:     os.Getenv("DB_USER"),
		Password: os.Getenv("DB_PASSWORD"),
		Name:     os.Getenv("DB_NAME"),
	})
	if err != nil {
		t.Skipf("Skipping: could not connect to test database: %v", err)
	}
	require.NoError(t, s.EnsureSchema(ctx))

	// テストデータをクリア
	_, err = s.db.ExecContext(ctx, "DELETE FROM participants")
	require.NoError(t, err)
	_, err = s.db.ExecContext(ctx, "DELETE FROM messages")
	require.NoError(t, err)

	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStore_Conformance(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store { return setupTestStore(t) })
}

func TestConfig_DSN(t *testing.T) {
	cfg := Config{Host: "db", Port: "3306", User: "chat", Password: "secret", Name: "batepapo"}
	require.Equal(t, "chat:secret@tcp(db:3306)/batepapo?parseTime=true&clientFoundRows=true", cfg.DSN())
}

func TestPlaceholders(t *testing.T) {
	require.Equal(t, "?", placeholders(1))
	require.Equal(t, "?, ?, ?", placeholders(3))
}
