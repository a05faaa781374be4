// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Credity Contributors

// Package mocks provides testify mocks for the account package interfaces.
package mocks

import (
	"context"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/mock"

	"github.com/anerua/Credity/internal/account"
)

// MockRepository is a mock account.Repository.
type MockRepository struct {
	mock.Mock
}

// NewMockRepository creates a MockRepository whose expectations are asserted
// when the test ends.
func NewMockRepository(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockRepository {
	m := &MockRepository{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

// Create implements account.Repository.
func (m *MockRepository) Create(ctx context.Context, acct *account.Account) error {
	return m.Called(ctx, acct).Error(0)
}

// GetByID implements account.Repository.
func (m *MockRepository) GetByID(ctx context.Context, id ulid.ULID) (*account.Account, error) {
	args := m.Called(ctx, id)
	acct, _ := args.Get(0).(*account.Account)
	return acct, args.Error(1)
}

// GetByEmail implements account.Repository.
func (m *MockRepository) GetByEmail(ctx context.Context, email string) (*account.Account, error) {
	args := m.Called(ctx, email)
	acct, _ := args.Get(0).(*account.Account)
	return acct, args.Error(1)
}

// Update implements account.Repository.
func (m *MockRepository) Update(ctx context.Context, acct *account.Account) error {
	return m.Called(ctx, acct).Error(0)
}

// UpdatePassword implements account.Repository.
func (m *MockRepository) UpdatePassword(ctx context.Context, id ulid.ULID, passwordHash string) error {
	return m.Called(ctx, id, passwordHash).Error(0)
}

// ReplacePasswordHash implements account.Repository.
func (m *MockRepository) ReplacePasswordHash(ctx context.Context, id ulid.ULID, oldHash, newHash string) (bool, error) {
	args := m.Called(ctx, id, oldHash, newHash)
	return args.Bool(0), args.Error(1)
}

// RecordLoginFailure implements account.Repository.
func (m *MockRepository) RecordLoginFailure(ctx context.Context, id ulid.ULID, now time.Time) error {
	return m.Called(ctx, id, now).Error(0)
}

// ResetLoginFailures implements account.Repository.
func (m *MockRepository) ResetLoginFailures(ctx context.Context, id ulid.ULID, now time.Time) error {
	return m.Called(ctx, id, now).Error(0)
}

// Delete implements account.Repository.
func (m *MockRepository) Delete(ctx context.Context, id ulid.ULID) error {
	return m.Called(ctx, id).Error(0)
}

// MockPasswordHasher is a mock account.PasswordHasher.
type MockPasswordHasher struct {
	mock.Mock
}

// NewMockPasswordHasher creates a MockPasswordHasher.
func NewMockPasswordHasher(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockPasswordHasher {
	m := &MockPasswordHasher{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

// Hash implements account.PasswordHasher.
func (m *MockPasswordHasher) Hash(password string) (string, error) {
	args := m.Called(password)
	return args.String(0), args.Error(1)
}

// Verify implements account.PasswordHasher.
func (m *MockPasswordHasher) Verify(password, hash string) (bool, error) {
	args := m.Called(password, hash)
	return args.Bool(0), args.Error(1)
}

// NeedsUpgrade implements account.PasswordHasher.
func (m *MockPasswordHasher) NeedsUpgrade(hash string) bool {
	return m.Called(hash).Bool(0)
}

// MockSessionRevoker is a mock account.SessionRevoker.
type MockSessionRevoker struct {
	mock.Mock
}

// NewMockSessionRevoker creates a MockSessionRevoker.
func NewMockSessionRevoker(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockSessionRevoker {
	m := &MockSessionRevoker{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

// RevokeAll implements account.SessionRevoker.
func (m *MockSessionRevoker) RevokeAll(ctx context.Context, accountID ulid.ULID) error {
	return m.Called(ctx, accountID).Error(0)
}

var (
	_ account.Repository     = (*MockRepository)(nil)
	_ account.PasswordHasher = (*MockPasswordHasher)(nil)
	_ account.SessionRevoker = (*MockSessionRevoker)(nil)
)
