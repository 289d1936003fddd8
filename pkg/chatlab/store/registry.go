package store

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xunchahaha/ChatLab/pkg/chatlab/model"
)

// ListSessions enumerates every session store under databasesDir,
// returning the roster the `session.getAll` worker
// operation needs. Each store is opened
// just long enough to read its meta/owner rows and closed again; the
// worker host's open-handle cache is for query traffic, not this sweep.
func ListSessions(ctx context.Context, databasesDir string) ([]model.Session, error) {
	entries, err := os.ReadDir(databasesDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var out []model.Session
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !strings.HasSuffix(name, ".db") {
			continue
		}
		sessionID := strings.TrimSuffix(name, ".db")
		path := filepath.Join(databasesDir, name)

		sess, err := readSessionSummary(ctx, path, sessionID)
		if err != nil {
			continue
		}
		out = append(out, sess)
	}
	return out, nil
}

func readSessionSummary(ctx context.Context, path, sessionID string) (model.Session, error) {
	s, err := OpenSession(path)
	if err != nil {
		return model.Session{}, err
	}
	defer s.Close()

	sess, err := GetMeta(ctx, s, sessionID)
	if err != nil {
		return model.Session{}, err
	}
	if ownerID, ok, err := Owner(ctx, s); err == nil && ok {
		sess.OwnerID = ownerIDToString(ownerID)
	}
	if threshold, ok, err := GapThreshold(ctx, s); err == nil && ok {
		sess.GapThreshold = threshold
	}
	return sess, nil
}

// GetSessionByID opens a single session's meta/owner/gap-threshold fields
// by id, for the `session.get` worker operation.
func GetSessionByID(ctx context.Context, databasesDir, sessionID string) (model.Session, error) {
	path := filepath.Join(databasesDir, sessionID+".db")
	return readSessionSummary(ctx, path, sessionID)
}

func ownerIDToString(id int64) string {
	if id == 0 {
		return ""
	}
	return strconv.FormatInt(id, 10)
}
