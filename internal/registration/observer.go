package registration

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/ayush/registration-service/internal/identity"
	"github.com/ayush/registration-service/internal/models"
)

// Observer receives the events a registration emits.
type Observer interface {
	Registered(ctx context.Context, account *models.Account)
	CreationFailed(ctx context.Context, username string, cause identity.Error)
}

// Observers fans events out to every member.
type Observers []Observer

func (o Observers) Registered(ctx context.Context, account *models.Account) {
	for _, obs := range o {
		obs.Registered(ctx, account)
	}
}

func (o Observers) CreationFailed(ctx context.Context, username string, cause identity.Error) {
	for _, obs := range o {
		obs.CreationFailed(ctx, username, cause)
	}
}

// LogObserver writes one info entry per event.
type LogObserver struct {
	logger *slog.Logger
}

func NewLogObserver(logger *slog.Logger) *LogObserver {
	return &LogObserver{logger: logger}
}

func (l *LogObserver) Registered(ctx context.Context, account *models.Account) {
	l.logger.InfoContext(ctx, "New user registered: "+account.Username,
		"username", account.Username,
		"account_id", account.ID,
	)
}

func (l *LogObserver) CreationFailed(ctx context.Context, username string, cause identity.Error) {
	l.logger.InfoContext(ctx, fmt.Sprintf("User registration error for %s: %s", username, cause.Description),
		"username", username,
		"code", string(cause.Code),
	)
}

// ArchiveWriter stores an audit record under a key.
type ArchiveWriter interface {
	Put(ctx context.Context, key string, record []byte) error
}

// AuditRecord is what the archive keeps for each new account.
type AuditRecord struct {
	Event     string    `json:"event"`
	AccountID string    `json:"account_id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	At        time.Time `json:"at"`
}

// ArchiveObserver writes an AuditRecord per successful registration.
// Archive failures are logged and otherwise ignored.
type ArchiveObserver struct {
	archive ArchiveWriter
	logger  *slog.Logger
	now     func() time.Time
}

func NewArchiveObserver(archive ArchiveWriter, logger *slog.Logger) *ArchiveObserver {
	return &ArchiveObserver{archive: archive, logger: logger, now: time.Now}
}

func (a *ArchiveObserver) Registered(ctx context.Context, account *models.Account) {
	at := a.now().UTC()
	rec := AuditRecord{
		Event:     "registered",
		AccountID: account.ID,
		Username:  account.Username,
		Email:     account.Email,
		At:        at,
	}
	body, err := json.Marshal(rec)
	if err != nil {
		a.logger.WarnContext(ctx, "encode audit record", "username", account.Username, "error", err)
		return
	}
	key := fmt.Sprintf("registrations/%s/%s-%s.json", at.Format("2006/01/02"), account.NormalizedUsername, uuid.NewString())
	if err := a.archive.Put(ctx, key, body); err != nil {
		a.logger.WarnContext(ctx, "archive audit record", "username", account.Username, "key", key, "error", err)
	}
}

// CreationFailed is not archived; the log observer covers it.
func (a *ArchiveObserver) CreationFailed(context.Context, string, identity.Error) {}
