// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Credity Contributors

//go:build integration

package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/anerua/Credity/internal/account"
	accountpg "github.com/anerua/Credity/internal/account/postgres"
	"github.com/anerua/Credity/internal/app"
	"github.com/anerua/Credity/internal/httpapi"
	"github.com/anerua/Credity/internal/session"
	sessionpg "github.com/anerua/Credity/internal/session/postgres"
	"github.com/anerua/Credity/internal/store"
)

const (
	prefix       = "/api/account"
	testEmail    = "test@example.com"
	testPassword = "aA1-K+4fX"
)

// testEnv holds the database and the API served on top of it.
type testEnv struct {
	ctx       context.Context
	cancel    context.CancelFunc
	container *postgres.PostgresContainer
	pool      *pgxpool.Pool
	server    *httptest.Server
}

func setupTestEnv(rotate bool) (*testEnv, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	env := &testEnv{ctx: ctx, cancel: cancel}

	container, err := postgres.Run(ctx,
		"postgres:18-alpine",
		postgres.WithDatabase("credity_test"),
		postgres.WithUsername("credity"),
		postgres.WithPassword("credity"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		cancel()
		return nil, err
	}
	env.container = container

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		env.cleanup()
		return nil, err
	}

	migrator, err := store.NewMigrator(connStr)
	if err != nil {
		env.cleanup()
		return nil, err
	}
	if err := migrator.Up(); err != nil {
		_ = migrator.Close()
		env.cleanup()
		return nil, err
	}
	_ = migrator.Close()

	env.pool, err = store.Connect(ctx, connStr, store.DefaultConnectOptions())
	if err != nil {
		env.cleanup()
		return nil, err
	}

	accounts := accountpg.NewAccountRepository(env.pool)
	signer, err := session.NewSigner([]byte("0123456789abcdef0123456789abcdef"), "credity")
	if err != nil {
		env.cleanup()
		return nil, err
	}
	sessions, err := session.NewService(sessionpg.NewRefreshTokenStore(env.pool), accounts, signer,
		session.Config{RotateRefresh: rotate})
	if err != nil {
		env.cleanup()
		return nil, err
	}
	hasher := account.NewUpgradingHasher(account.NewArgon2idHasherWithParams(
		account.Argon2idParams{Time: 1, Memory: 1024, Threads: 1, SaltLen: 16, KeyLen: 32}))
	credentials, err := account.NewCredentialService(accounts, hasher, account.DefaultPasswordPolicy(), sessions)
	if err != nil {
		env.cleanup()
		return nil, err
	}

	gin.SetMode(gin.TestMode)
	router := httpapi.NewRouter(app.NewAccountService(credentials, sessions), httpapi.RouterConfig{
		Prefix: prefix,
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	env.server = httptest.NewServer(router)
	return env, nil
}

func (env *testEnv) cleanup() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if env.server != nil {
		env.server.Close()
	}
	if env.pool != nil {
		env.pool.Close()
	}
	if env.container != nil {
		_ = env.container.Terminate(ctx)
	}
	env.cancel()
}

// call sends a JSON request and decodes a JSON response into out when out
// is non-nil.
func (env *testEnv) call(method, path, token string, body, out any) int {
	GinkgoHelper()
	var reader io.Reader = http.NoBody
	if body != nil {
		raw, err := json.Marshal(body)
		Expect(err).NotTo(HaveOccurred())
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(env.ctx, method, env.server.URL+prefix+path, reader)
	Expect(err).NotTo(HaveOccurred())
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := env.server.Client().Do(req)
	Expect(err).NotTo(HaveOccurred())
	defer resp.Body.Close()
	if out != nil {
		Expect(json.NewDecoder(resp.Body).Decode(out)).To(Succeed())
	}
	return resp.StatusCode
}

func (env *testEnv) countTokens() int {
	GinkgoHelper()
	var n int
	Expect(env.pool.QueryRow(env.ctx, `SELECT COUNT(*) FROM refresh_tokens`).Scan(&n)).To(Succeed())
	return n
}

var registration = map[string]string{
	"email":      testEmail,
	"password":   testPassword,
	"first_name": "First",
	"last_name":  "Last",
}

var _ = Describe("Account API on PostgreSQL", func() {
	var env *testEnv

	AfterEach(func() {
		if env != nil {
			env.cleanup()
		}
	})

	Context("without refresh rotation", func() {
		BeforeEach(func() {
			var err error
			env, err = setupTestEnv(false)
			Expect(err).NotTo(HaveOccurred())
		})

		It("runs the register, login, profile, refresh and delete scenario", func() {
			var profile httpapi.ProfileResponse
			Expect(env.call(http.MethodPost, "/register", "", registration, &profile)).To(Equal(http.StatusCreated))
			Expect(profile).To(Equal(httpapi.ProfileResponse{Email: testEmail, FirstName: "First", LastName: "Last"}))

			var tokens httpapi.TokenResponse
			Expect(env.call(http.MethodPost, "/token", "",
				map[string]string{"email": testEmail, "password": testPassword}, &tokens)).To(Equal(http.StatusOK))
			Expect(tokens.Access).NotTo(BeEmpty())
			Expect(tokens.Refresh).NotTo(BeEmpty())
			Expect(env.countTokens()).To(Equal(1))

			Expect(env.call(http.MethodGet, "/detail", tokens.Access, nil, &profile)).To(Equal(http.StatusOK))
			Expect(profile.Email).To(Equal(testEmail))

			var refreshed httpapi.TokenResponse
			Expect(env.call(http.MethodPost, "/token/refresh", "",
				map[string]string{"refresh": tokens.Refresh}, &refreshed)).To(Equal(http.StatusOK))
			Expect(refreshed.Access).NotTo(BeEmpty())
			Expect(refreshed.Refresh).To(BeEmpty())

			Expect(env.call(http.MethodDelete, "/delete", tokens.Access, nil, nil)).To(Equal(http.StatusNoContent))
			Expect(env.countTokens()).To(BeZero(), "refresh tokens are removed with the account")

			Expect(env.call(http.MethodPost, "/token/refresh", "",
				map[string]string{"refresh": tokens.Refresh}, nil)).To(Equal(http.StatusUnauthorized))
		})

		It("treats email case-insensitively for uniqueness and login", func() {
			Expect(env.call(http.MethodPost, "/register", "", registration, nil)).To(Equal(http.StatusCreated))

			upper := map[string]string{
				"email": "TEST@Example.com", "password": testPassword, "first_name": "A", "last_name": "B",
			}
			var fields map[string][]string
			Expect(env.call(http.MethodPost, "/register", "", upper, &fields)).To(Equal(http.StatusBadRequest))
			Expect(fields).To(HaveKeyWithValue("email", []string{account.MsgDuplicateEmail}))

			Expect(env.call(http.MethodPost, "/token", "",
				map[string]string{"email": "Test@Example.COM", "password": testPassword}, nil)).To(Equal(http.StatusOK))
		})

		It("persists the lockout counter", func() {
			Expect(env.call(http.MethodPost, "/register", "", registration, nil)).To(Equal(http.StatusCreated))

			for range account.LockoutThreshold {
				Expect(env.call(http.MethodPost, "/token", "",
					map[string]string{"email": testEmail, "password": "wrong"}, nil)).To(Equal(http.StatusUnauthorized))
			}

			var body httpapi.ErrorBody
			Expect(env.call(http.MethodPost, "/token", "",
				map[string]string{"email": testEmail, "password": testPassword}, &body)).To(Equal(http.StatusUnauthorized))
			Expect(body.Code).To(Equal(app.CodeAccountLocked))

			var lockedUntil *time.Time
			Expect(env.pool.QueryRow(env.ctx,
				`SELECT locked_until FROM accounts WHERE LOWER(email) = $1`, testEmail).Scan(&lockedUntil)).To(Succeed())
			Expect(lockedUntil).NotTo(BeNil())
			Expect(*lockedUntil).To(BeTemporally(">", time.Now()))
		})

		It("counts every concurrent failed login", func() {
			Expect(env.call(http.MethodPost, "/register", "", registration, nil)).To(Equal(http.StatusCreated))

			const attempts = account.LockoutThreshold - 1
			var wg sync.WaitGroup
			for range attempts {
				wg.Add(1)
				go func() {
					defer GinkgoRecover()
					defer wg.Done()
					Expect(env.call(http.MethodPost, "/token", "",
						map[string]string{"email": testEmail, "password": "wrong"}, nil)).To(Equal(http.StatusUnauthorized))
				}()
			}
			wg.Wait()

			var failed int
			Expect(env.pool.QueryRow(env.ctx,
				`SELECT failed_attempts FROM accounts WHERE LOWER(email) = $1`, testEmail).Scan(&failed)).To(Succeed())
			Expect(failed).To(Equal(attempts))
		})

		It("keeps a profile update made between failed logins", func() {
			Expect(env.call(http.MethodPost, "/register", "", registration, nil)).To(Equal(http.StatusCreated))
			var tokens httpapi.TokenResponse
			Expect(env.call(http.MethodPost, "/token", "",
				map[string]string{"email": testEmail, "password": testPassword}, &tokens)).To(Equal(http.StatusOK))

			Expect(env.call(http.MethodPost, "/token", "",
				map[string]string{"email": testEmail, "password": "wrong"}, nil)).To(Equal(http.StatusUnauthorized))
			Expect(env.call(http.MethodPut, "/update", tokens.Access,
				map[string]string{"first_name": "Renamed", "last_name": "Person"}, nil)).To(Equal(http.StatusOK))
			Expect(env.call(http.MethodPost, "/token", "",
				map[string]string{"email": testEmail, "password": "wrong"}, nil)).To(Equal(http.StatusUnauthorized))

			var first string
			var failed int
			Expect(env.pool.QueryRow(env.ctx,
				`SELECT first_name, failed_attempts FROM accounts WHERE LOWER(email) = $1`, testEmail).
				Scan(&first, &failed)).To(Succeed())
			Expect(first).To(Equal("Renamed"))
			Expect(failed).To(Equal(2))
		})

		It("revokes every session on password change", func() {
			Expect(env.call(http.MethodPost, "/register", "", registration, nil)).To(Equal(http.StatusCreated))
			var first, second httpapi.TokenResponse
			creds := map[string]string{"email": testEmail, "password": testPassword}
			Expect(env.call(http.MethodPost, "/token", "", creds, &first)).To(Equal(http.StatusOK))
			Expect(env.call(http.MethodPost, "/token", "", creds, &second)).To(Equal(http.StatusOK))

			Expect(env.call(http.MethodPut, "/change-auth", first.Access,
				map[string]string{"old_password": testPassword, "new_password": "bB2-L+5gY"}, nil)).To(Equal(http.StatusOK))

			for _, refresh := range []string{first.Refresh, second.Refresh} {
				Expect(env.call(http.MethodPost, "/token/refresh", "",
					map[string]string{"refresh": refresh}, nil)).To(Equal(http.StatusUnauthorized))
			}
		})
	})

	Context("with refresh rotation", func() {
		BeforeEach(func() {
			var err error
			env, err = setupTestEnv(true)
			Expect(err).NotTo(HaveOccurred())
		})

		It("lets exactly one concurrent refresh of the same token succeed", func() {
			Expect(env.call(http.MethodPost, "/register", "", registration, nil)).To(Equal(http.StatusCreated))
			var tokens httpapi.TokenResponse
			Expect(env.call(http.MethodPost, "/token", "",
				map[string]string{"email": testEmail, "password": testPassword}, &tokens)).To(Equal(http.StatusOK))

			const racers = 8
			statuses := make(chan int, racers)
			var wg sync.WaitGroup
			for range racers {
				wg.Add(1)
				go func() {
					defer GinkgoRecover()
					defer wg.Done()
					statuses <- env.call(http.MethodPost, "/token/refresh", "",
						map[string]string{"refresh": tokens.Refresh}, nil)
				}()
			}
			wg.Wait()
			close(statuses)

			ok := 0
			for status := range statuses {
				if status == http.StatusOK {
					ok++
				} else {
					Expect(status).To(Equal(http.StatusUnauthorized))
				}
			}
			Expect(ok).To(Equal(1))
		})
	})
})
