package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

type Profile struct {
	ID           string
	Name         string
	ImageURL     string
	Subscription string
	Credit       int
}

// EnsureProfile inserts a profile row if none exists. Returns true when a
// new row was created.
func (s *Store) EnsureProfile(ctx context.Context, userID, name string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO profiles (id, name) VALUES (?, ?) ON CONFLICT(id) DO NOTHING`,
		userID, name)
	if err != nil {
		return false, fmt.Errorf("ensure profile: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("ensure profile: %w", err)
	}
	return n > 0, nil
}

func (s *Store) GetProfile(ctx context.Context, userID string) (Profile, error) {
	var p Profile
	var name, image, sub sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, image_url, subscription, credit FROM profiles WHERE id = ?`, userID).
		Scan(&p.ID, &name, &image, &sub, &p.Credit)
	if errors.Is(err, sql.ErrNoRows) {
		return Profile{}, ErrNotFound
	}
	if err != nil {
		return Profile{}, fmt.Errorf("get profile: %w", err)
	}
	p.Name = name.String
	p.ImageURL = image.String
	p.Subscription = sub.String
	return p, nil
}

// GetUserName returns the stored name, or "" when the profile has none.
func (s *Store) GetUserName(ctx context.Context, userID string) (string, error) {
	var name sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT name FROM profiles WHERE id = ?`, userID).Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("get user name: %w", err)
	}
	return name.String, nil
}

func (s *Store) UpdateUserName(ctx context.Context, userID, name string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE profiles SET name = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		name, userID)
	if err != nil {
		return fmt.Errorf("update user name: %w", err)
	}
	return nil
}

func (s *Store) UpdateImageURL(ctx context.Context, userID, imageURL string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE profiles SET image_url = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		imageURL, userID)
	if err != nil {
		return fmt.Errorf("update image url: %w", err)
	}
	return nil
}

func (s *Store) UpdateSubscription(ctx context.Context, userID, subscription string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE profiles SET subscription = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		subscription, userID)
	if err != nil {
		return fmt.Errorf("update subscription: %w", err)
	}
	return nil
}

// GetCredit returns the user's credit balance, or ErrNotFound when no
// profile exists.
func (s *Store) GetCredit(ctx context.Context, userID string) (int, error) {
	var credit int
	err := s.db.QueryRowContext(ctx,
		`SELECT credit FROM profiles WHERE id = ?`, userID).Scan(&credit)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("get credit: %w", err)
	}
	return credit, nil
}

// SetCredit writes the balance, creating the profile row when absent.
func (s *Store) SetCredit(ctx context.Context, userID string, credit int) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO profiles (id, credit) VALUES (?, ?)
		 ON CONFLICT(id) DO UPDATE SET credit = excluded.credit, updated_at = CURRENT_TIMESTAMP`,
		userID, credit)
	if err != nil {
		return fmt.Errorf("set credit: %w", err)
	}
	return nil
}
