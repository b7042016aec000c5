package database

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-while/go-pugblog/internal/models"
)

func openTestDB(t *testing.T) *Database {
	t.Helper()
	cfg := DefaultDBConfig()
	cfg.URL = "sqlite://" + filepath.Join(t.TempDir(), "test.sq3")
	db, err := OpenDatabase(cfg)
	if err != nil {
		t.Fatalf("OpenDatabase() error = %v", err)
	}
	t.Cleanup(func() { db.Shutdown() })
	return db
}

func createTestUser(t *testing.T, db *Database, username string) *models.User {
	t.Helper()
	u, err := db.CreateUser(username, "correct horse battery", false)
	if err != nil {
		t.Fatalf("CreateUser(%q) error = %v", username, err)
	}
	return u
}

func TestParseDatabaseURL(t *testing.T) {
	tests := []struct {
		in      string
		dialect Dialect
		driver  string
		dsn     string
		wantErr bool
	}{
		{"sqlite://data/blog.sq3", DialectSQLite, "sqlite3", "data/blog.sq3", false},
		{"sqlite3:///tmp/blog.sq3", DialectSQLite, "sqlite3", "/tmp/blog.sq3", false},
		{"data/blog.sq3", DialectSQLite, "sqlite3", "data/blog.sq3", false},
		{"file:blog.sq3?cache=shared", DialectSQLite, "sqlite3", "file:blog.sq3?cache=shared", false},
		{"postgres://u:p@localhost/blog", DialectPostgres, "pgx", "postgres://u:p@localhost/blog", false},
		{"postgresql://localhost/blog", DialectPostgres, "pgx", "postgresql://localhost/blog", false},
		{"mysql://localhost/blog", "", "", "", true},
		{"", "", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			dialect, driver, dsn, err := parseDatabaseURL(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseDatabaseURL(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if dialect != tt.dialect || driver != tt.driver || dsn != tt.dsn {
				t.Errorf("parseDatabaseURL(%q) = (%q, %q, %q), want (%q, %q, %q)",
					tt.in, dialect, driver, dsn, tt.dialect, tt.driver, tt.dsn)
			}
		})
	}
}

func TestRebind(t *testing.T) {
	pg := &Database{dialect: DialectPostgres}
	got := pg.rebind(`UPDATE posts SET title = ?, content = ? WHERE id = ?`)
	want := `UPDATE posts SET title = $1, content = $2 WHERE id = $3`
	if got != want {
		t.Errorf("rebind() = %q, want %q", got, want)
	}

	lite := &Database{dialect: DialectSQLite}
	q := `SELECT * FROM posts WHERE id = ?`
	if got := lite.rebind(q); got != q {
		t.Errorf("sqlite rebind() = %q, want unchanged", got)
	}
}

func TestSplitStatements(t *testing.T) {
	content := "-- header comment\nCREATE TABLE a (\n  id INT\n);\n\nCREATE INDEX i ON a(id);\n-- trailing\n"
	stmts := splitStatements(content)
	if len(stmts) != 2 {
		t.Fatalf("splitStatements() returned %d statements, want 2: %q", len(stmts), stmts)
	}
}

func TestParseMigrationFileName(t *testing.T) {
	m, err := parseMigrationFileName("0002_postgres_posts.sql")
	if err != nil {
		t.Fatalf("parseMigrationFileName() error = %v", err)
	}
	if m.Version != 2 || m.Dialect != DialectPostgres || m.Description != "posts" {
		t.Errorf("parseMigrationFileName() = %+v", m)
	}

	for _, bad := range []string{"0001_posts.sql", "x_sqlite_posts.sql", "0001_oracle_posts.sql", "0001_sqlite_posts.txt"} {
		if _, err := parseMigrationFileName(bad); err == nil {
			t.Errorf("parseMigrationFileName(%q) expected error", bad)
		}
	}
}

func TestEmbeddedMigrations_BothDialects(t *testing.T) {
	lite, err := getEmbeddedMigrationFiles(DialectSQLite)
	if err != nil {
		t.Fatalf("getEmbeddedMigrationFiles(sqlite) error = %v", err)
	}
	pg, err := getEmbeddedMigrationFiles(DialectPostgres)
	if err != nil {
		t.Fatalf("getEmbeddedMigrationFiles(postgres) error = %v", err)
	}
	if len(lite) == 0 || len(lite) != len(pg) {
		t.Errorf("sqlite has %d migrations, postgres has %d", len(lite), len(pg))
	}
	for i := range lite {
		if lite[i].Version != i+1 {
			t.Errorf("sqlite migration %d has version %d", i, lite[i].Version)
		}
	}
}

func TestMigrate_Idempotent(t *testing.T) {
	db := openTestDB(t)

	if err := db.Migrate(); err != nil {
		t.Fatalf("second Migrate() error = %v", err)
	}

	states, err := db.MigrationStatus()
	if err != nil {
		t.Fatalf("MigrationStatus() error = %v", err)
	}
	if len(states) == 0 {
		t.Fatal("MigrationStatus() returned no migrations")
	}
	for _, st := range states {
		if !st.Applied || st.AppliedAt == nil {
			t.Errorf("migration %s not applied", st.FileName)
		}
	}
}

func TestShutdown(t *testing.T) {
	cfg := DefaultDBConfig()
	cfg.URL = "sqlite://" + filepath.Join(t.TempDir(), "shutdown.sq3")
	db, err := OpenDatabase(cfg)
	if err != nil {
		t.Fatalf("OpenDatabase() error = %v", err)
	}
	if db.IsDBshutdown() {
		t.Fatal("IsDBshutdown() = true on an open database")
	}
	if err := db.Shutdown(); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}
	if !db.IsDBshutdown() {
		t.Error("IsDBshutdown() = false after Shutdown")
	}
	if err := db.Shutdown(); err != nil {
		t.Errorf("second Shutdown() error = %v", err)
	}
}

func TestUsers_CreateAndLookup(t *testing.T) {
	db := openTestDB(t)

	u := createTestUser(t, db, "alice")
	if u.ID <= 0 {
		t.Fatalf("user ID = %d, want > 0", u.ID)
	}
	if u.PasswordHash == "correct horse battery" {
		t.Error("password stored in clear text")
	}

	if _, err := db.CreateUser("alice", "another password", false); !errors.Is(err, ErrUsernameTaken) {
		t.Errorf("duplicate CreateUser() error = %v, want ErrUsernameTaken", err)
	}

	got, err := db.GetUserByUsername("alice")
	if err != nil {
		t.Fatalf("GetUserByUsername() error = %v", err)
	}
	if got.ID != u.ID || got.IsSuperuser {
		t.Errorf("GetUserByUsername() = %+v", got)
	}
	if !CheckPassword(got.PasswordHash, "correct horse battery") {
		t.Error("CheckPassword() = false for the right password")
	}
	if CheckPassword(got.PasswordHash, "wrong") {
		t.Error("CheckPassword() = true for a wrong password")
	}

	if _, err := db.GetUserByUsername("nobody"); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("GetUserByUsername(nobody) error = %v, want ErrUserNotFound", err)
	}
	if _, err := db.GetUserByID(9999); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("GetUserByID(9999) error = %v, want ErrUserNotFound", err)
	}
}

func TestUsers_PasswordFlagsDelete(t *testing.T) {
	db := openTestDB(t)
	u := createTestUser(t, db, "bob")

	hash, err := HashPassword("new secret value")
	if err != nil {
		t.Fatalf("HashPassword() error = %v", err)
	}
	if err := db.UpdateUserPassword(u.ID, hash); err != nil {
		t.Fatalf("UpdateUserPassword() error = %v", err)
	}
	if err := db.SetUserFlags(u.ID, true, true); err != nil {
		t.Fatalf("SetUserFlags() error = %v", err)
	}
	if _, err := HashPassword(strings.Repeat("x", MaxPasswordBytes+1)); !errors.Is(err, ErrPasswordTooLong) {
		t.Errorf("HashPassword(73 bytes) error = %v, want ErrPasswordTooLong", err)
	}
	got, _ := db.GetUserByID(u.ID)
	if !CheckPassword(got.PasswordHash, "new secret value") {
		t.Error("password was not updated")
	}
	if !got.IsStaff || !got.IsSuperuser {
		t.Errorf("flags = staff %v superuser %v, want both true", got.IsStaff, got.IsSuperuser)
	}

	post := &models.Post{Title: "t", Content: "c", AuthorID: u.ID}
	if err := db.InsertPost(post); err != nil {
		t.Fatalf("InsertPost() error = %v", err)
	}

	if err := db.DeleteUserByUsername("bob"); err != nil {
		t.Fatalf("DeleteUserByUsername() error = %v", err)
	}
	if _, err := db.GetPost(post.ID); !errors.Is(err, ErrPostNotFound) {
		t.Errorf("post of deleted user still there: err = %v", err)
	}
	if err := db.DeleteUserByUsername("bob"); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("second delete error = %v, want ErrUserNotFound", err)
	}
}

func TestSessions_Lifecycle(t *testing.T) {
	db := openTestDB(t)
	u := createTestUser(t, db, "carol")

	sid, err := db.CreateUserSession(u.ID, "192.0.2.1")
	if err != nil {
		t.Fatalf("CreateUserSession() error = %v", err)
	}
	if len(sid) != SessionIDLength {
		t.Errorf("session id length = %d, want %d", len(sid), SessionIDLength)
	}

	got, err := db.ValidateUserSession(sid)
	if err != nil {
		t.Fatalf("ValidateUserSession() error = %v", err)
	}
	if got.ID != u.ID || got.LastLoginIP != "192.0.2.1" || got.LastLogin == nil {
		t.Errorf("ValidateUserSession() user = %+v", got)
	}

	if err := db.InvalidateUserSessionBySessionID(sid); err != nil {
		t.Fatalf("InvalidateUserSessionBySessionID() error = %v", err)
	}
	if _, err := db.ValidateUserSession(sid); !errors.Is(err, ErrInvalidSession) {
		t.Errorf("ValidateUserSession() after logout error = %v, want ErrInvalidSession", err)
	}
	if _, err := db.ValidateUserSession(""); !errors.Is(err, ErrInvalidSession) {
		t.Errorf("ValidateUserSession(\"\") error = %v, want ErrInvalidSession", err)
	}
}

func TestSessions_ExpireAndCleanup(t *testing.T) {
	cfg := DefaultDBConfig()
	cfg.URL = "sqlite://" + filepath.Join(t.TempDir(), "expire.sq3")
	cfg.SessionTimeout = 50 * time.Millisecond
	db, err := OpenDatabase(cfg)
	if err != nil {
		t.Fatalf("OpenDatabase() error = %v", err)
	}
	defer db.Shutdown()

	u := createTestUser(t, db, "dave")
	sid, err := db.CreateUserSession(u.ID, "")
	if err != nil {
		t.Fatalf("CreateUserSession() error = %v", err)
	}

	time.Sleep(120 * time.Millisecond)

	if _, err := db.ValidateUserSession(sid); !errors.Is(err, ErrInvalidSession) {
		t.Errorf("expired ValidateUserSession() error = %v, want ErrInvalidSession", err)
	}
	n, err := db.CleanupExpiredSessions()
	if err != nil {
		t.Fatalf("CleanupExpiredSessions() error = %v", err)
	}
	if n != 1 {
		t.Errorf("CleanupExpiredSessions() removed %d, want 1", n)
	}
}

func TestLoginLockout(t *testing.T) {
	db := openTestDB(t)
	u := createTestUser(t, db, "erin")

	for i := 0; i < MaxLoginAttempts-1; i++ {
		if err := db.IncrementLoginAttempts("erin"); err != nil {
			t.Fatalf("IncrementLoginAttempts() error = %v", err)
		}
	}
	if locked, _ := db.IsUserLockedOut("erin"); locked {
		t.Fatal("locked out before reaching the limit")
	}
	db.IncrementLoginAttempts("erin")
	if locked, _ := db.IsUserLockedOut("erin"); !locked {
		t.Fatal("not locked out after reaching the limit")
	}

	if err := db.ResetLoginAttempts(u.ID); err != nil {
		t.Fatalf("ResetLoginAttempts() error = %v", err)
	}
	if locked, _ := db.IsUserLockedOut("erin"); locked {
		t.Error("still locked out after reset")
	}
	if locked, err := db.IsUserLockedOut("unknown"); locked || err != nil {
		t.Errorf("IsUserLockedOut(unknown) = %v, %v", locked, err)
	}
}

func TestLoginLockout_WindowFollowsLastFailure(t *testing.T) {
	db := openTestDB(t)
	u := createTestUser(t, db, "frank")

	for i := 0; i < MaxLoginAttempts; i++ {
		db.IncrementLoginAttempts("frank")
	}
	stale := now().Add(-LoginLockoutTime - time.Minute)
	if _, err := db.exec(`UPDATE users SET last_failed_login = ? WHERE id = ?`, stale, u.ID); err != nil {
		t.Fatal(err)
	}

	// account changes after the failures do not restart the window
	hash, _ := HashPassword("another secret value")
	if err := db.UpdateUserPassword(u.ID, hash); err != nil {
		t.Fatal(err)
	}
	if err := db.SetUserFlags(u.ID, true, false); err != nil {
		t.Fatal(err)
	}
	if locked, err := db.IsUserLockedOut("frank"); locked || err != nil {
		t.Fatalf("IsUserLockedOut() = %v, %v after the window passed", locked, err)
	}
	got, _ := db.GetUserByID(u.ID)
	if got.LoginAttempts != 0 {
		t.Errorf("LoginAttempts = %d after expired lockout, want 0", got.LoginAttempts)
	}

	for i := 0; i < MaxLoginAttempts; i++ {
		db.IncrementLoginAttempts("frank")
	}
	if locked, _ := db.IsUserLockedOut("frank"); !locked {
		t.Error("fresh failures did not lock the account")
	}
}

func TestPosts_CRUDAndOrdering(t *testing.T) {
	db := openTestDB(t)
	author := createTestUser(t, db, "frank")

	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	titles := []string{"oldest", "middle", "newest"}
	ids := make([]int64, len(titles))
	for i, title := range titles {
		p := &models.Post{Title: title, Content: "body " + title, AuthorID: author.ID, CreatedAt: base.Add(time.Duration(i) * time.Hour)}
		if err := db.InsertPost(p); err != nil {
			t.Fatalf("InsertPost(%q) error = %v", title, err)
		}
		ids[i] = p.ID
	}

	posts, err := db.GetAllPosts()
	if err != nil {
		t.Fatalf("GetAllPosts() error = %v", err)
	}
	if len(posts) != 3 {
		t.Fatalf("GetAllPosts() returned %d posts, want 3", len(posts))
	}
	for i, want := range []string{"newest", "middle", "oldest"} {
		if posts[i].Title != want {
			t.Errorf("posts[%d].Title = %q, want %q", i, posts[i].Title, want)
		}
		if posts[i].Author != "frank" {
			t.Errorf("posts[%d].Author = %q, want frank", i, posts[i].Author)
		}
	}

	p, err := db.GetPost(ids[0])
	if err != nil {
		t.Fatalf("GetPost() error = %v", err)
	}
	p.Title, p.Content = "edited", "edited body"
	if err := db.UpdatePost(p); err != nil {
		t.Fatalf("UpdatePost() error = %v", err)
	}
	got, _ := db.GetPost(ids[0])
	if got.Title != "edited" || got.AuthorID != author.ID || !got.CreatedAt.Equal(base) {
		t.Errorf("after update: %+v", got)
	}

	if err := db.DeletePost(ids[1]); err != nil {
		t.Fatalf("DeletePost() error = %v", err)
	}
	if _, err := db.GetPost(ids[1]); !errors.Is(err, ErrPostNotFound) {
		t.Errorf("GetPost() after delete error = %v, want ErrPostNotFound", err)
	}
	if err := db.DeletePost(ids[1]); !errors.Is(err, ErrPostNotFound) {
		t.Errorf("second DeletePost() error = %v, want ErrPostNotFound", err)
	}
	if err := db.UpdatePost(&models.Post{ID: 424242, Title: "x", Content: "y"}); !errors.Is(err, ErrPostNotFound) {
		t.Errorf("UpdatePost(missing) error = %v, want ErrPostNotFound", err)
	}
	if err := db.InsertPost(&models.Post{Title: "x", Content: "y"}); err == nil {
		t.Error("InsertPost() without author should fail")
	}
}

func TestGetOrCreatePost(t *testing.T) {
	db := openTestDB(t)
	author := createTestUser(t, db, "gina")

	first, created, err := db.GetOrCreatePost("Hello", "World", author.ID)
	if err != nil || !created {
		t.Fatalf("GetOrCreatePost() = %v, %v, want created", created, err)
	}
	again, created, err := db.GetOrCreatePost("Hello", "World", author.ID)
	if err != nil || created {
		t.Fatalf("second GetOrCreatePost() = %v, %v, want existing", created, err)
	}
	if again.ID != first.ID {
		t.Errorf("second GetOrCreatePost() id = %d, want %d", again.ID, first.ID)
	}
}

func TestSeedPortfolio_Idempotent(t *testing.T) {
	db := openTestDB(t)

	res, err := db.SeedPortfolio(DefaultSeedOptions())
	if err != nil {
		t.Fatalf("SeedPortfolio() error = %v", err)
	}
	if res.UsersCreated != 2 || res.PostsCreated != len(SamplePosts) {
		t.Errorf("first seed = %+v", res)
	}

	res, err = db.SeedPortfolio(SeedOptions{})
	if err != nil {
		t.Fatalf("second SeedPortfolio() error = %v", err)
	}
	if res.UsersCreated != 0 || res.PostsCreated != 0 {
		t.Errorf("second seed created rows: %+v", res)
	}

	admin, err := db.GetUserByUsername("admin")
	if err != nil || !admin.IsSuperuser || !admin.IsStaff {
		t.Errorf("admin = %+v, err = %v", admin, err)
	}
	if !CheckPassword(admin.PasswordHash, "admin123") {
		t.Error("admin password not set")
	}

	posts, _ := db.GetAllPosts()
	if len(posts) != len(SamplePosts) {
		t.Fatalf("seeded %d posts, want %d", len(posts), len(SamplePosts))
	}
	for _, p := range posts {
		if p.Author != "demo_user" {
			t.Errorf("post %q author = %q, want demo_user", p.Title, p.Author)
		}
	}
}

func TestRegistrationToggle(t *testing.T) {
	db := openTestDB(t)

	enabled, err := db.IsRegistrationEnabled()
	if err != nil || !enabled {
		t.Fatalf("IsRegistrationEnabled() = %v, %v, want true", enabled, err)
	}
	if err := db.SetRegistrationEnabled(false); err != nil {
		t.Fatalf("SetRegistrationEnabled() error = %v", err)
	}
	if enabled, _ := db.IsRegistrationEnabled(); enabled {
		t.Error("registration still enabled")
	}
	if err := db.SetConfigValue("registration_enabled", "true"); err != nil {
		t.Fatalf("SetConfigValue() error = %v", err)
	}
	if enabled, _ := db.IsRegistrationEnabled(); !enabled {
		t.Error("registration not re-enabled")
	}
	if v, _ := db.GetConfigValue("missing"); v != "" {
		t.Errorf("GetConfigValue(missing) = %q, want empty", v)
	}
}
