package database

import (
	"errors"
	"fmt"
	"log"

	"github.com/go-while/go-pugblog/internal/models"
)

// SeedOptions names the accounts created by SeedPortfolio
type SeedOptions struct {
	AdminUsername string
	AdminPassword string
	DemoUsername  string
	DemoPassword  string
}

// SamplePost is one of the demo posts
type SamplePost struct {
	Title   string
	Content string
}

var SamplePosts = []SamplePost{
	{"First Blog", "This is a sample blog post for your portfolio."},
	{"Second Blog", "Another example post visible to everyone."},
	{"Django Deployment Tips", "This shows my deployment skills."},
}

const SeedDoneMessage = "✅ Admin & demo posts created! Homepage will show them."

// DefaultSeedOptions returns the demo accounts of a fresh portfolio install
func DefaultSeedOptions() SeedOptions {
	return SeedOptions{
		AdminUsername: "admin",
		AdminPassword: "admin123",
		DemoUsername:  "demo_user",
		DemoPassword:  "demo123",
	}
}

// SeedResult counts what SeedPortfolio inserted
type SeedResult struct {
	UsersCreated int
	PostsCreated int
}

// SeedPortfolio creates the admin superuser, the demo user and the sample
// posts authored by the demo user. Existing rows are left alone.
func (db *Database) SeedPortfolio(opts SeedOptions) (*SeedResult, error) {
	def := DefaultSeedOptions()
	if opts.AdminUsername == "" {
		opts.AdminUsername, opts.AdminPassword = def.AdminUsername, def.AdminPassword
	}
	if opts.DemoUsername == "" {
		opts.DemoUsername, opts.DemoPassword = def.DemoUsername, def.DemoPassword
	}

	res := &SeedResult{}

	if _, created, err := db.getOrCreateUser(opts.AdminUsername, opts.AdminPassword, true); err != nil {
		return nil, fmt.Errorf("failed to seed admin user: %w", err)
	} else if created {
		res.UsersCreated++
	}

	demo, created, err := db.getOrCreateUser(opts.DemoUsername, opts.DemoPassword, false)
	if err != nil {
		return nil, fmt.Errorf("failed to seed demo user: %w", err)
	}
	if created {
		res.UsersCreated++
	}

	for _, sp := range SamplePosts {
		_, created, err := db.GetOrCreatePost(sp.Title, sp.Content, demo.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to seed post %q: %w", sp.Title, err)
		}
		if created {
			res.PostsCreated++
		}
	}

	log.Printf("[DB]: seed done: %d users and %d posts created", res.UsersCreated, res.PostsCreated)
	return res, nil
}

func (db *Database) getOrCreateUser(username, password string, superuser bool) (*models.User, bool, error) {
	u, err := db.GetUserByUsername(username)
	if err == nil {
		return u, false, nil
	}
	if !errors.Is(err, ErrUserNotFound) {
		return nil, false, err
	}
	u, err = db.CreateUser(username, password, superuser)
	if errors.Is(err, ErrUsernameTaken) {
		// lost a race with a concurrent seed
		u, err = db.GetUserByUsername(username)
		return u, false, err
	}
	return u, err == nil, err
}
