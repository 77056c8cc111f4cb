// Package ledger implements the access token lifecycle against a worksheet of access records.
//
// Each email address has at most one row. A row is currently valid if it is enabled, not yet
// used and not yet expired. Issuing a token for an email overwrites its row, so only the most
// recently issued token can ever be valid.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bibliotecavirtual/biblioteca-sheets/log"
	"github.com/bibliotecavirtual/biblioteca-sheets/store"
)

// RowStore is the worksheet holding the ledger. The first row is a header and is ignored.
type RowStore interface {
	ReadAll(ctx context.Context) ([][]string, error)
	UpdateRange(ctx context.Context, area string, rows [][]string) error
	AppendRow(ctx context.Context, row []string) error
}

// Codec signs and verifies access tokens.
type Codec interface {
	Sign(email string) (string, error)
	Verify(token string) (string, error)
}

type Reason string

const (
	NotAuthorized Reason = "not authorized"
	UserDisabled  Reason = "user disabled"
	TokenUsed     Reason = "token already used"
	TokenExpired  Reason = "token expired"
	TokenInvalid  Reason = "token invalid or expired"
	TokenNotFound Reason = "token not found"
)

var (
	ErrStore        = errors.New("ledger store error")
	ErrInvalidInput = errors.New("invalid input")
)

// Result is the outcome of a ledger operation that ran to completion. OK is false when the
// ledger determined that access is not permitted, in which case Reason says why.
type Result struct {
	OK        bool
	Reason    Reason
	Email     string
	Token     string
	ExpiresAt time.Time
}

type Options struct {
	Sheet     string
	Window    time.Duration
	Location  *time.Location
	Serialize bool
	Now       func() time.Time
}

type Ledger struct {
	store    RowStore
	codec    Codec
	sheet    string
	window   time.Duration
	location *time.Location
	now      func() time.Time
	locks    *locks
}

func New(rows RowStore, codec Codec, options Options) (*Ledger, error) {
	if rows == nil || codec == nil {
		return nil, fmt.Errorf("%w: missing ledger store or token codec", ErrInvalidInput)
	}

	if strings.TrimSpace(options.Sheet) == "" {
		return nil, fmt.Errorf("%w: missing ledger worksheet name", ErrInvalidInput)
	}

	if options.Window <= 0 {
		return nil, fmt.Errorf("%w: invalid access window (%v)", ErrInvalidInput, options.Window)
	}

	l := Ledger{
		store:    rows,
		codec:    codec,
		sheet:    options.Sheet,
		window:   options.Window,
		location: options.Location,
		now:      options.Now,
	}

	if l.location == nil {
		l.location = time.UTC
	}

	if l.now == nil {
		l.now = time.Now
	}

	if options.Serialize {
		l.locks = newLocks()
	}

	return &l, nil
}

// Window returns the configured validity period of newly issued tokens.
func (l *Ledger) Window() time.Duration {
	return l.window
}

// CheckAccess returns the stored token for the email address if it is currently valid.
func (l *Ledger) CheckAccess(ctx context.Context, email string) (Result, error) {
	log.Infof("checking access for %v", email)

	records, err := l.read(ctx)
	if err != nil {
		return Result{}, err
	}

	record := findByEmail(records, email)
	if record == nil {
		log.Warnf("%v not found in ledger", email)
		return fail(NotAuthorized, email), nil
	}

	log.Debugf("%v found in row %v", email, record.Row)

	if reason := record.check(l.now()); reason != "" {
		log.Warnf("%v not authorised (%v)", email, reason)
		return fail(reason, record.Email), nil
	}

	return Result{
		OK:        true,
		Email:     record.Email,
		Token:     record.Token,
		ExpiresAt: record.ExpiresAt,
	}, nil
}

// Issue generates a new token for the email address and records it with a fresh expiry,
// superseding any previously issued token.
func (l *Ledger) Issue(ctx context.Context, email string) (Result, error) {
	email = normalise(email)
	if email == "" {
		return Result{}, fmt.Errorf("%w: missing email", ErrInvalidInput)
	}

	log.Infof("issuing token for %v", email)

	if l.locks != nil {
		unlock := l.locks.lock(email)
		defer unlock()
	}

	token, err := l.codec.Sign(email)
	if err != nil {
		return Result{}, err
	}

	expires := l.now().Add(l.window)

	rows, err := l.readRows(ctx)
	if err != nil {
		return Result{}, err
	}

	if len(rows) == 0 {
		if err := l.store.AppendRow(ctx, Header); err != nil {
			return Result{}, fmt.Errorf("%w (%v)", ErrStore, err)
		}
	}

	record := findByEmail(parseRecords(rows, l.location), email)
	if record != nil {
		area := fmt.Sprintf("%s!B%d:F%d", store.Quote(l.sheet), record.Row, record.Row)
		values := [][]string{{token, formatTimestamp(expires, l.location), "1", "TRUE", "FALSE"}}

		log.Debugf("%v already exists, updating row %v", email, record.Row)

		if err := l.store.UpdateRange(ctx, area, values); err != nil {
			return Result{}, fmt.Errorf("%w (%v)", ErrStore, err)
		}

		email = record.Email
	} else {
		log.Debugf("%v is new, appending row", email)

		row := []string{email, token, formatTimestamp(expires, l.location), "1", "TRUE", "FALSE"}
		if err := l.store.AppendRow(ctx, row); err != nil {
			return Result{}, fmt.Errorf("%w (%v)", ErrStore, err)
		}
	}

	log.Infof("issued token %v for %v, expires %v", redact(token), email, formatTimestamp(expires, l.location))

	return Result{
		OK:        true,
		Email:     email,
		Token:     token,
		ExpiresAt: expires,
	}, nil
}

// Validate verifies the token signature and then checks the ledger row that holds it.
// Signature and codec expiry failures are both reported as TokenInvalid.
func (l *Ledger) Validate(ctx context.Context, token string) (Result, error) {
	token = strings.TrimSpace(token)

	log.Infof("validating token %v", redact(token))

	subject, err := l.codec.Verify(token)
	if err != nil {
		log.Warnf("token %v invalid or expired (%v)", redact(token), err)
		return fail(TokenInvalid, ""), nil
	}

	records, err := l.read(ctx)
	if err != nil {
		return Result{}, err
	}

	record := findByToken(records, token)
	if record == nil {
		log.Warnf("token %v not found in ledger", redact(token))
		return fail(TokenNotFound, ""), nil
	}

	if normalise(subject) != normalise(record.Email) {
		log.Warnf("token %v subject %v does not match ledger row %v (%v)", redact(token), subject, record.Row, record.Email)
		return fail(TokenInvalid, ""), nil
	}

	if reason := record.check(l.now()); reason != "" {
		log.Warnf("token %v for %v rejected (%v)", redact(token), record.Email, reason)
		return fail(reason, record.Email), nil
	}

	log.Infof("token %v valid for %v", redact(token), record.Email)

	return Result{
		OK:        true,
		Email:     record.Email,
		Token:     record.Token,
		ExpiresAt: record.ExpiresAt,
	}, nil
}

// MarkUsed flags the row holding the token as used. It is not gated on expiry
// or the enabled flag and leaves every other column unchanged.
func (l *Ledger) MarkUsed(ctx context.Context, token string) (Result, error) {
	token = strings.TrimSpace(token)

	log.Infof("marking token %v as used", redact(token))

	if token == "" {
		return fail(TokenNotFound, ""), nil
	}

	records, err := l.read(ctx)
	if err != nil {
		return Result{}, err
	}

	record := findByToken(records, token)
	if record == nil {
		log.Warnf("token %v not found in ledger", redact(token))
		return fail(TokenNotFound, ""), nil
	}

	area := fmt.Sprintf("%s!F%d", store.Quote(l.sheet), record.Row)
	if err := l.store.UpdateRange(ctx, area, [][]string{{"TRUE"}}); err != nil {
		return Result{}, fmt.Errorf("%w (%v)", ErrStore, err)
	}

	log.Infof("token %v for %v marked as used", redact(token), record.Email)

	return Result{
		OK:        true,
		Email:     record.Email,
		Token:     record.Token,
		ExpiresAt: record.ExpiresAt,
	}, nil
}

func (l *Ledger) read(ctx context.Context) ([]Record, error) {
	rows, err := l.readRows(ctx)
	if err != nil {
		return nil, err
	}

	return parseRecords(rows, l.location), nil
}

func (l *Ledger) readRows(ctx context.Context) ([][]string, error) {
	rows, err := l.store.ReadAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w (%v)", ErrStore, err)
	}

	return rows, nil
}

func parseRecords(rows [][]string, location *time.Location) []Record {
	records := []Record{}

	for i, row := range rows {
		if i == 0 {
			continue
		}

		records = append(records, parseRecord(i+1, row, location))
	}

	return records
}

func findByEmail(records []Record, email string) *Record {
	key := normalise(email)
	if key == "" {
		return nil
	}

	for i := range records {
		if normalise(records[i].Email) == key {
			return &records[i]
		}
	}

	return nil
}

func findByToken(records []Record, token string) *Record {
	if token == "" {
		return nil
	}

	for i := range records {
		if records[i].Token == token {
			return &records[i]
		}
	}

	return nil
}

func fail(reason Reason, email string) Result {
	return Result{
		OK:     false,
		Reason: reason,
		Email:  email,
	}
}

func redact(token string) string {
	if len(token) <= 12 {
		return "..."
	}

	return "..." + token[len(token)-8:]
}
