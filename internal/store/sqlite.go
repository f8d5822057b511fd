package store

import (
	"context"
	"encoding/json"
	"fmt"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/ridethebus/bus-server/internal/domain"
)

const roomsSchema = `
CREATE TABLE IF NOT EXISTS rooms (
	code         TEXT PRIMARY KEY,
	password     TEXT NOT NULL,
	max_players  INTEGER NOT NULL,
	host_token   TEXT NOT NULL,
	game_started INTEGER NOT NULL DEFAULT 0,
	members      TEXT NOT NULL
);
`

// SQLiteStore persists rooms in a single table keyed by code. The member
// map and its insertion order travel in one JSON column so a membership
// write stays a single-statement, single-key update; scalar fields get
// their own columns so partial updates touch only what changed.
type SQLiteStore struct {
	pool *sqlitex.Pool
}

// OpenSQLite opens (and creates, if needed) the database at path. The
// parent directory must exist.
func OpenSQLite(path string, poolSize int) (*SQLiteStore, error) {
	if poolSize <= 0 {
		poolSize = 4
	}
	pool, err := sqlitex.NewPool(path, sqlitex.PoolOptions{
		PoolSize: poolSize,
		PrepareConn: func(conn *sqlite.Conn) error {
			return sqlitex.ExecuteScript(conn, roomsSchema, nil)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: open %q: %v", ErrUnavailable, path, err)
	}
	return &SQLiteStore{pool: pool}, nil
}

func (s *SQLiteStore) Close() error {
	return s.pool.Close()
}

// membersColumn is the JSON shape of the members column.
type membersColumn struct {
	Members map[domain.UserToken]domain.MemberRecord `json:"members"`
	Order   []domain.UserToken                       `json:"order"`
}

func encodeMembers(members map[domain.UserToken]domain.MemberRecord, order []domain.UserToken) (string, error) {
	b, err := json.Marshal(membersColumn{Members: members, Order: order})
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func scanRecord(stmt *sqlite.Stmt) (*domain.RoomRecord, error) {
	var col membersColumn
	if err := json.Unmarshal([]byte(stmt.GetText("members")), &col); err != nil {
		return nil, err
	}
	if col.Members == nil {
		col.Members = make(map[domain.UserToken]domain.MemberRecord)
	}
	return &domain.RoomRecord{
		Password:    stmt.GetText("password"),
		MaxPlayers:  int(stmt.GetInt64("max_players")),
		HostToken:   domain.UserToken(stmt.GetText("host_token")),
		GameStarted: stmt.GetInt64("game_started") != 0,
		Members:     col.Members,
		Order:       col.Order,
	}, nil
}

func (s *SQLiteStore) Get(ctx context.Context, code domain.RoomCode) (*domain.RoomRecord, bool, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer s.pool.Put(conn)

	var rec *domain.RoomRecord
	err = sqlitex.Execute(conn,
		`SELECT password, max_players, host_token, game_started, members FROM rooms WHERE code = ?`,
		&sqlitex.ExecOptions{
			Args: []any{string(code)},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				r, err := scanRecord(stmt)
				if err != nil {
					return err
				}
				rec = r
				return nil
			},
		})
	if err != nil {
		return nil, false, fmt.Errorf("%w: get %q: %v", ErrUnavailable, code, err)
	}
	if rec == nil {
		return nil, false, nil
	}
	return rec, true, nil
}

func (s *SQLiteStore) Put(ctx context.Context, code domain.RoomCode, rec *domain.RoomRecord) error {
	members, err := encodeMembers(rec.Members, rec.Order)
	if err != nil {
		return fmt.Errorf("%w: encode %q: %v", ErrUnavailable, code, err)
	}
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer s.pool.Put(conn)

	started := 0
	if rec.GameStarted {
		started = 1
	}
	err = sqlitex.Execute(conn,
		`INSERT INTO rooms (code, password, max_players, host_token, game_started, members)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT (code) DO UPDATE SET
		   password = excluded.password,
		   max_players = excluded.max_players,
		   host_token = excluded.host_token,
		   game_started = excluded.game_started,
		   members = excluded.members`,
		&sqlitex.ExecOptions{
			Args: []any{string(code), rec.Password, rec.MaxPlayers, string(rec.HostToken), started, members},
		})
	if err != nil {
		return fmt.Errorf("%w: put %q: %v", ErrUnavailable, code, err)
	}
	return nil
}

func (s *SQLiteStore) UpdateMembership(ctx context.Context, code domain.RoomCode, up MembershipUpdate) error {
	members, err := encodeMembers(up.Members, up.Order)
	if err != nil {
		return fmt.Errorf("%w: encode %q: %v", ErrUnavailable, code, err)
	}
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer s.pool.Put(conn)

	err = sqlitex.Execute(conn,
		`UPDATE rooms SET members = ?, host_token = ? WHERE code = ?`,
		&sqlitex.ExecOptions{
			Args: []any{members, string(up.HostToken), string(code)},
		})
	if err != nil {
		return fmt.Errorf("%w: update members %q: %v", ErrUnavailable, code, err)
	}
	return nil
}

func (s *SQLiteStore) SetGameStarted(ctx context.Context, code domain.RoomCode) error {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer s.pool.Put(conn)

	err = sqlitex.Execute(conn,
		`UPDATE rooms SET game_started = 1 WHERE code = ?`,
		&sqlitex.ExecOptions{Args: []any{string(code)}})
	if err != nil {
		return fmt.Errorf("%w: start %q: %v", ErrUnavailable, code, err)
	}
	return nil
}

func (s *SQLiteStore) Delete(ctx context.Context, code domain.RoomCode) error {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer s.pool.Put(conn)

	err = sqlitex.Execute(conn,
		`DELETE FROM rooms WHERE code = ?`,
		&sqlitex.ExecOptions{Args: []any{string(code)}})
	if err != nil {
		return fmt.Errorf("%w: delete %q: %v", ErrUnavailable, code, err)
	}
	return nil
}

func (s *SQLiteStore) All(ctx context.Context) (map[domain.RoomCode]*domain.RoomRecord, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer s.pool.Put(conn)

	out := make(map[domain.RoomCode]*domain.RoomRecord)
	err = sqlitex.Execute(conn,
		`SELECT code, password, max_players, host_token, game_started, members FROM rooms`,
		&sqlitex.ExecOptions{
			ResultFunc: func(stmt *sqlite.Stmt) error {
				rec, err := scanRecord(stmt)
				if err != nil {
					return err
				}
				out[domain.RoomCode(stmt.GetText("code"))] = rec
				return nil
			},
		})
	if err != nil {
		return nil, fmt.Errorf("%w: list: %v", ErrUnavailable, err)
	}
	return out, nil
}
