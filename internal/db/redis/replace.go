package redis

import (
	"context"
	"fmt"

	"github.com/redis/rueidis"

	"github.com/opencare-labs/doseaudit/internal/db"
)

// ReplaceGroup deletes delKeys and writes items inside one MULTI/EXEC
// transaction on a dedicated connection. Readers see either the old group
// or the new one, never a mix.
func (s *Store) ReplaceGroup(ctx context.Context, delKeys []string, items []db.HashSetItem) error {
	if len(delKeys) == 0 && len(items) == 0 {
		return nil
	}

	return s.client.Dedicated(func(c rueidis.DedicatedClient) error {
		cmds := make([]rueidis.Completed, 0, len(delKeys)+len(items)+2)
		cmds = append(cmds, c.B().Multi().Build())

		for _, key := range delKeys {
			cmds = append(cmds, c.B().Del().Key(key).Build())
		}
		for _, item := range items {
			cmd := c.B().Hset().Key(item.Key).FieldValue()
			for k, v := range item.Fields {
				cmd = cmd.FieldValue(k, v)
			}
			cmds = append(cmds, cmd.Build())
		}

		cmds = append(cmds, c.B().Exec().Build())

		results := c.DoMulti(ctx, cmds...)
		for _, res := range results {
			if err := res.Error(); err != nil {
				return &db.Error{Op: db.OpMulti, Err: fmt.Errorf("replace group: %w", err)}
			}
		}
		return nil
	})
}
