// Package mysql implements storage.Store on top of MySQL.
package mysql

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"net"

	"github.com/cenkalti/backoff/v4"
	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/mysql"
	gomysql "github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"

	"gameexchange/internal/config"
	"gameexchange/internal/domain"
	"gameexchange/internal/storage"
)

const (
	gamesTable  = "Games"
	usersTable  = "Users"
	offersTable = "Offers"
)

// MySQL error numbers worth retrying.
const (
	errLockWaitTimeout = 1205
	errDeadlock        = 1213
)

// Engine is the MySQL-backed store.
type Engine struct {
	db      *sqlx.DB
	dialect goqu.DialectWrapper
}

var _ storage.Store = (*Engine)(nil)

// Open connects to the given DSN and verifies the connection.
func Open(ctx context.Context, dsn string) (*Engine, error) {
	db, err := sqlx.Open("mysql", dsn)
	if err != nil {
		return nil, domain.Wrap(domain.KindTransient, err, "open database")
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, domain.Wrap(domain.KindTransient, err, "ping database")
	}
	return New(db), nil
}

// New wraps an existing connection pool.
func New(db *sqlx.DB) *Engine {
	return &Engine{db: db, dialect: goqu.Dialect("mysql")}
}

func (e *Engine) Close() error { return e.db.Close() }

// withRetry runs op with bounded exponential backoff as long as the failure
// looks like a connectivity or lock hiccup.
func (e *Engine) withRetry(ctx context.Context, op func() error) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = config.StoreRetryInitialInterval
	bo.MaxElapsedTime = config.StoreRetryMaxElapsed

	err := backoff.Retry(func() error {
		err := op()
		if err == nil {
			return nil
		}
		if retryable(err) {
			return err
		}
		return backoff.Permanent(err)
	}, backoff.WithContext(bo, ctx))

	if err != nil && retryable(err) {
		return domain.Wrap(domain.KindTransient, err, "store unavailable")
	}
	return err
}

func retryable(err error) bool {
	if errors.Is(err, driver.ErrBadConn) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var myErr *gomysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == errLockWaitTimeout || myErr.Number == errDeadlock
	}
	return false
}

// ----- games -----

var gameCols = []any{"id", "name", "publisher", "releaseYear", "releaseSystem", "condition", "previousOwner", "version"}

func (e *Engine) ListGames(ctx context.Context) ([]domain.Game, error) {
	query, args, err := e.dialect.From(gamesTable).Prepared(true).Select(gameCols...).Order(goqu.C("id").Asc()).ToSQL()
	if err != nil {
		return nil, err
	}
	var games []domain.Game
	err = e.withRetry(ctx, func() error {
		return e.db.SelectContext(ctx, &games, query, args...)
	})
	return games, err
}

func (e *Engine) GetGame(ctx context.Context, id int64) (*domain.Game, error) {
	return e.getGame(ctx, goqu.Ex{"id": id}, "game %d not found", id)
}

func (e *Engine) GetGameByName(ctx context.Context, name string) (*domain.Game, error) {
	return e.getGame(ctx, goqu.Ex{"name": name}, "game %q not found", name)
}

func (e *Engine) getGame(ctx context.Context, where goqu.Ex, notFoundFmt string, arg any) (*domain.Game, error) {
	query, args, err := e.dialect.From(gamesTable).Prepared(true).Select(gameCols...).Where(where).ToSQL()
	if err != nil {
		return nil, err
	}
	var game domain.Game
	err = e.withRetry(ctx, func() error {
		return e.db.GetContext(ctx, &game, query, args...)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.E(domain.KindNotFound, notFoundFmt, arg)
	}
	if err != nil {
		return nil, err
	}
	return &game, nil
}

func (e *Engine) CreateGame(ctx context.Context, game *domain.Game) error {
	if err := e.checkOwner(ctx, game.PreviousOwner); err != nil {
		return err
	}
	query, args, err := e.dialect.Insert(gamesTable).Prepared(true).Rows(goqu.Record{
		"name":          game.Name,
		"publisher":     game.Publisher,
		"releaseYear":   game.ReleaseYear,
		"releaseSystem": game.ReleaseSystem,
		"condition":     game.Condition,
		"previousOwner": game.PreviousOwner,
		"version":       0,
	}).ToSQL()
	if err != nil {
		return err
	}
	return e.withRetry(ctx, func() error {
		res, err := e.db.ExecContext(ctx, query, args...)
		if err != nil {
			return err
		}
		id, err := res.LastInsertId()
		if err != nil {
			return err
		}
		game.ID = id
		game.Version = 0
		return nil
	})
}

func (e *Engine) ReplaceGame(ctx context.Context, id int64, game domain.Game) (*domain.Game, error) {
	if err := e.checkOwner(ctx, game.PreviousOwner); err != nil {
		return nil, err
	}
	return e.updateGame(ctx, id, goqu.Record{
		"name":          game.Name,
		"publisher":     game.Publisher,
		"releaseYear":   game.ReleaseYear,
		"releaseSystem": game.ReleaseSystem,
		"condition":     game.Condition,
		"previousOwner": game.PreviousOwner,
	})
}

func (e *Engine) PatchGame(ctx context.Context, id int64, patch domain.GamePatch) (*domain.Game, error) {
	if patch.Empty() {
		return nil, domain.E(domain.KindInvalidArgument, "at least one game field must be provided for update")
	}
	if patch.PreviousOwner != nil {
		if err := e.checkOwner(ctx, patch.PreviousOwner); err != nil {
			return nil, err
		}
	}
	// Only defined fields make it into the SET clause.
	rec := goqu.Record{}
	if patch.Name != nil {
		rec["name"] = *patch.Name
	}
	if patch.Publisher != nil {
		rec["publisher"] = *patch.Publisher
	}
	if patch.ReleaseYear != nil {
		rec["releaseYear"] = *patch.ReleaseYear
	}
	if patch.ReleaseSystem != nil {
		rec["releaseSystem"] = *patch.ReleaseSystem
	}
	if patch.Condition != nil {
		rec["condition"] = *patch.Condition
	}
	if patch.PreviousOwner != nil {
		rec["previousOwner"] = *patch.PreviousOwner
	}
	return e.updateGame(ctx, id, rec)
}

func (e *Engine) updateGame(ctx context.Context, id int64, rec goqu.Record) (*domain.Game, error) {
	// Ownership writes bump the version so concurrent swaps can detect
	// staleness.
	if _, ok := rec["previousOwner"]; ok {
		rec["version"] = goqu.L("version + 1")
	}
	query, args, err := e.dialect.Update(gamesTable).Prepared(true).Set(rec).Where(goqu.Ex{"id": id}).ToSQL()
	if err != nil {
		return nil, err
	}
	err = e.withRetry(ctx, func() error {
		res, err := e.db.ExecContext(ctx, query, args...)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			// MySQL also reports 0 for no-op updates; confirm existence.
			return e.existsOr(ctx, gamesTable, id, domain.E(domain.KindNotFound, "game %d not found", id))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return e.GetGame(ctx, id)
}

func (e *Engine) DeleteGame(ctx context.Context, id int64) error {
	query, args, err := e.dialect.Delete(gamesTable).Prepared(true).Where(goqu.Ex{"id": id}).ToSQL()
	if err != nil {
		return err
	}
	return e.withRetry(ctx, func() error {
		res, err := e.db.ExecContext(ctx, query, args...)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return domain.E(domain.KindNotFound, "game %d not found", id)
		}
		return nil
	})
}

// checkOwner verifies a non-nil owner reference points at a real user.
func (e *Engine) checkOwner(ctx context.Context, owner *int64) error {
	if owner == nil {
		return nil
	}
	if _, err := e.GetUser(ctx, *owner); err != nil {
		if domain.IsKind(err, domain.KindNotFound) {
			return domain.E(domain.KindInvalidArgument, "invalid previousOwner: user %d does not exist", *owner)
		}
		return err
	}
	return nil
}

func (e *Engine) existsOr(ctx context.Context, table string, id int64, missing error) error {
	query, args, err := e.dialect.From(table).Prepared(true).Select(goqu.C("id")).Where(goqu.Ex{"id": id}).ToSQL()
	if err != nil {
		return err
	}
	var got int64
	err = e.db.GetContext(ctx, &got, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return missing
	}
	return err
}

// ----- users -----

var userCols = []any{"id", "username", "email", "password", "address"}

func (e *Engine) ListUsers(ctx context.Context) ([]domain.User, error) {
	query, args, err := e.dialect.From(usersTable).Prepared(true).Select(userCols...).Order(goqu.C("id").Asc()).ToSQL()
	if err != nil {
		return nil, err
	}
	var users []domain.User
	err = e.withRetry(ctx, func() error {
		return e.db.SelectContext(ctx, &users, query, args...)
	})
	return users, err
}

func (e *Engine) GetUser(ctx context.Context, id int64) (*domain.User, error) {
	query, args, err := e.dialect.From(usersTable).Prepared(true).Select(userCols...).Where(goqu.Ex{"id": id}).ToSQL()
	if err != nil {
		return nil, err
	}
	var user domain.User
	err = e.withRetry(ctx, func() error {
		return e.db.GetContext(ctx, &user, query, args...)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.E(domain.KindNotFound, "user %d not found", id)
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (e *Engine) CreateUser(ctx context.Context, user *domain.User) error {
	query, args, err := e.dialect.Insert(usersTable).Prepared(true).Rows(goqu.Record{
		"username": user.Username,
		"email":    user.Email,
		"password": user.Password,
		"address":  user.Address,
	}).ToSQL()
	if err != nil {
		return err
	}
	return e.withRetry(ctx, func() error {
		res, err := e.db.ExecContext(ctx, query, args...)
		if err != nil {
			return err
		}
		id, err := res.LastInsertId()
		if err != nil {
			return err
		}
		user.ID = id
		return nil
	})
}

func (e *Engine) ReplaceUser(ctx context.Context, id int64, user domain.User) (*domain.User, error) {
	return e.updateUser(ctx, id, goqu.Record{
		"username": user.Username,
		"password": user.Password,
		"address":  user.Address,
	})
}

func (e *Engine) PatchUser(ctx context.Context, id int64, patch domain.UserPatch) (*domain.User, error) {
	if patch.Empty() {
		return nil, domain.E(domain.KindInvalidArgument, "at least one user field must be provided for update")
	}
	rec := goqu.Record{}
	if patch.Username != nil {
		rec["username"] = *patch.Username
	}
	if patch.Password != nil {
		rec["password"] = *patch.Password
	}
	if patch.Address != nil {
		rec["address"] = *patch.Address
	}
	return e.updateUser(ctx, id, rec)
}

func (e *Engine) updateUser(ctx context.Context, id int64, rec goqu.Record) (*domain.User, error) {
	query, args, err := e.dialect.Update(usersTable).Prepared(true).Set(rec).Where(goqu.Ex{"id": id}).ToSQL()
	if err != nil {
		return nil, err
	}
	err = e.withRetry(ctx, func() error {
		res, err := e.db.ExecContext(ctx, query, args...)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return e.existsOr(ctx, usersTable, id, domain.E(domain.KindNotFound, "user %d not found", id))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return e.GetUser(ctx, id)
}

func (e *Engine) DeleteUser(ctx context.Context, id int64) error {
	query, args, err := e.dialect.Delete(usersTable).Prepared(true).Where(goqu.Ex{"id": id}).ToSQL()
	if err != nil {
		return err
	}
	return e.withRetry(ctx, func() error {
		res, err := e.db.ExecContext(ctx, query, args...)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return domain.E(domain.KindNotFound, "user %d not found", id)
		}
		return nil
	})
}

// ----- offers -----

var offerCols = []any{"id", "gameRequested", "gameOffered", "requestedOwner", "offeredOwner", "status"}

func (e *Engine) GetOffer(ctx context.Context, id int64) (*domain.Offer, error) {
	query, args, err := e.dialect.From(offersTable).Prepared(true).Select(offerCols...).Where(goqu.Ex{"id": id}).ToSQL()
	if err != nil {
		return nil, err
	}
	var offer domain.Offer
	err = e.withRetry(ctx, func() error {
		return e.db.GetContext(ctx, &offer, query, args...)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.E(domain.KindNotFound, "offer %d not found", id)
	}
	if err != nil {
		return nil, err
	}
	return &offer, nil
}

func (e *Engine) CreateOffer(ctx context.Context, offer *domain.Offer) error {
	query, args, err := e.dialect.Insert(offersTable).Prepared(true).Rows(goqu.Record{
		"gameRequested":  offer.GameRequested,
		"gameOffered":    offer.GameOffered,
		"requestedOwner": offer.RequestedOwner,
		"offeredOwner":   offer.OfferedOwner,
		"status":         string(domain.OfferPending),
	}).ToSQL()
	if err != nil {
		return err
	}
	return e.withRetry(ctx, func() error {
		res, err := e.db.ExecContext(ctx, query, args...)
		if err != nil {
			return err
		}
		id, err := res.LastInsertId()
		if err != nil {
			return err
		}
		offer.ID = id
		offer.Status = domain.OfferPending
		return nil
	})
}

// AcceptOffer swaps ownership between the two games and moves the offer to
// Accepted inside a single transaction. Each game write carries the version
// observed by the caller; a concurrent ownership write aborts the whole
// unit with a Conflict.
func (e *Engine) AcceptOffer(ctx context.Context, offerID int64, requested, offered domain.Game) error {
	return e.withRetry(ctx, func() error {
		tx, err := e.db.BeginTxx(ctx, nil)
		if err != nil {
			return err
		}
		defer func() { _ = tx.Rollback() }()

		if err := e.transitionOfferTx(ctx, tx, offerID, domain.OfferAccepted); err != nil {
			return err
		}
		if err := e.swapOwnerTx(ctx, tx, requested, offered.PreviousOwner); err != nil {
			return err
		}
		if err := e.swapOwnerTx(ctx, tx, offered, requested.PreviousOwner); err != nil {
			return err
		}
		return tx.Commit()
	})
}

func (e *Engine) RejectOffer(ctx context.Context, offerID int64) error {
	return e.withRetry(ctx, func() error {
		tx, err := e.db.BeginTxx(ctx, nil)
		if err != nil {
			return err
		}
		defer func() { _ = tx.Rollback() }()

		if err := e.transitionOfferTx(ctx, tx, offerID, domain.OfferRejected); err != nil {
			return err
		}
		return tx.Commit()
	})
}

// transitionOfferTx performs the guarded Pending -> terminal update.
func (e *Engine) transitionOfferTx(ctx context.Context, tx *sqlx.Tx, offerID int64, to domain.OfferStatus) error {
	query, args, err := e.dialect.Update(offersTable).Prepared(true).
		Set(goqu.Record{"status": string(to)}).
		Where(goqu.Ex{"id": offerID, "status": string(domain.OfferPending)}).
		ToSQL()
	if err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return e.explainOfferTransitionFailure(ctx, tx, offerID)
	}
	return nil
}

func (e *Engine) explainOfferTransitionFailure(ctx context.Context, tx *sqlx.Tx, offerID int64) error {
	query, args, err := e.dialect.From(offersTable).Prepared(true).
		Select(goqu.C("status")).Where(goqu.Ex{"id": offerID}).ToSQL()
	if err != nil {
		return err
	}
	var status string
	err = tx.GetContext(ctx, &status, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.E(domain.KindNotFound, "offer %d not found", offerID)
	}
	if err != nil {
		return err
	}
	return domain.E(domain.KindInvalidState, "offer %d is not pending (status %s)", offerID, status)
}

// swapOwnerTx writes newOwner onto game, guarded by the version the caller
// read. Zero rows means another writer moved the game first.
func (e *Engine) swapOwnerTx(ctx context.Context, tx *sqlx.Tx, game domain.Game, newOwner *int64) error {
	query, args, err := e.dialect.Update(gamesTable).Prepared(true).
		Set(goqu.Record{"previousOwner": newOwner, "version": goqu.L("version + 1")}).
		Where(goqu.Ex{"id": game.ID, "version": game.Version}).
		ToSQL()
	if err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.E(domain.KindConflict, "game %d changed hands concurrently", game.ID)
	}
	return nil
}
