package database

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm/logger"
)

func TestConfig_DSN(t *testing.T) {
	cases := []struct {
		name string
		cfg  Config
		want string
	}{
		{
			name: "tcp",
			cfg:  Config{Driver: "postgres", User: "u", Password: "p", Name: "outreach", Host: "localhost", Port: "5432"},
			want: "host=localhost user=u password=p dbname=outreach port=5432 sslmode=disable",
		},
		{
			name: "cloud sql socket",
			cfg:  Config{Driver: "postgres", User: "u", Password: "p", Name: "outreach", InstanceConnectionName: "proj:eu:db"},
			want: "host=/cloudsql/proj:eu:db user=u password=p dbname=outreach sslmode=disable",
		},
		{
			name: "sqlite",
			cfg:  Config{Driver: "sqlite", SQLitePath: "/tmp/outreach.db"},
			want: "/tmp/outreach.db",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, tc.cfg.DSN())
		})
	}
}

func TestConnect_UnsupportedDriver(t *testing.T) {
	_, err := Connect(Config{Driver: "oracle"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "unsupported")
}

func TestMigrate_CreatesTables(t *testing.T) {
	db, err := Connect(Config{
		Driver:     "sqlite",
		SQLitePath: filepath.Join(t.TempDir(), "outreach.db"),
		LogLevel:   logger.Silent,
	})
	require.NoError(t, err)

	require.NoError(t, Migrate(db))
	// Re-running is a no-op.
	require.NoError(t, Migrate(db))

	require.True(t, db.Migrator().HasTable("campaign_cursors"))
	require.True(t, db.Migrator().HasTable("contact_stats"))
}
