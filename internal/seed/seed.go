// Package seed provisions users and groups from a YAML (or JSON) file.
//
// Example file:
//
//	users:
//	  - id: alice
//	    display_name: Alice
//	    email: alice@example.com
//	groups:
//	  - id: trip
//	    name: Lisbon trip
//	    members: [alice, bob]
//
// Groups are active unless they set `archived: true`.
package seed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"gopkg.in/yaml.v3"

	"github.com/mmynk/splitledger/internal/apperr"
	"github.com/mmynk/splitledger/internal/models"
	"github.com/mmynk/splitledger/internal/storage"
)

// File is the content of a seed file.
type File struct {
	Users  []User  `yaml:"users"`
	Groups []Group `yaml:"groups"`
}

type User struct {
	ID          string `yaml:"id"`
	DisplayName string `yaml:"display_name"`
	Email       string `yaml:"email"`
}

type Group struct {
	ID       string   `yaml:"id"`
	Name     string   `yaml:"name"`
	Members  []string `yaml:"members"`
	Archived bool     `yaml:"archived"`
}

// Result counts what Apply created and skipped.
type Result struct {
	UsersCreated  int
	UsersSkipped  int
	GroupsCreated int
	GroupsSkipped int
}

// Parse decodes and validates a seed file.
func Parse(r io.Reader) (*File, error) {
	var f File
	if err := yaml.NewDecoder(r).Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to decode seed file: %w", err)
	}

	users := make(map[string]bool, len(f.Users))
	for i, u := range f.Users {
		if u.ID == "" {
			return nil, fmt.Errorf("user #%d has no id", i+1)
		}
		if users[u.ID] {
			return nil, fmt.Errorf("user %s listed twice", u.ID)
		}
		users[u.ID] = true
	}
	for i, g := range f.Groups {
		if g.ID == "" {
			return nil, fmt.Errorf("group #%d has no id", i+1)
		}
		if len(g.Members) == 0 {
			return nil, fmt.Errorf("group %s has no members", g.ID)
		}
	}
	return &f, nil
}

// Apply creates the users and groups that do not exist yet. Existing rows
// are left untouched, so a seed file can be applied repeatedly.
func Apply(ctx context.Context, store storage.Store, f *File) (Result, error) {
	var res Result

	for _, u := range f.Users {
		_, err := store.GetUser(ctx, u.ID)
		switch {
		case err == nil:
			res.UsersSkipped++
			continue
		case !errors.Is(err, apperr.ErrUserNotFound):
			return res, err
		}
		user := &models.User{ID: u.ID, DisplayName: u.DisplayName, Email: u.Email}
		if user.DisplayName == "" {
			user.DisplayName = u.ID
		}
		if err := store.CreateUser(ctx, user); err != nil {
			return res, fmt.Errorf("failed to create user %s: %w", u.ID, err)
		}
		slog.Info("User created", "user_id", u.ID)
		res.UsersCreated++
	}

	for _, g := range f.Groups {
		_, err := store.GetGroup(ctx, g.ID)
		switch {
		case err == nil:
			res.GroupsSkipped++
			continue
		case !errors.Is(err, apperr.ErrGroupNotFound):
			return res, err
		}

		found, err := store.GetUsersByIDs(ctx, g.Members)
		if err != nil {
			return res, err
		}
		for _, m := range g.Members {
			if _, ok := found[m]; !ok {
				return res, apperr.New(apperr.KindUserNotFound, "group %s member %s does not exist", g.ID, m)
			}
		}

		group := &models.Group{ID: g.ID, Name: g.Name, Members: g.Members, Active: !g.Archived}
		if err := store.CreateGroup(ctx, group); err != nil {
			return res, fmt.Errorf("failed to create group %s: %w", g.ID, err)
		}
		slog.Info("Group created", "group_id", g.ID, "members_count", len(g.Members))
		res.GroupsCreated++
	}

	return res, nil
}
