package game

import "context"

func (m *Manager) ReapIdle(ctx context.Context) int {
	return m.reapIdle(ctx)
}
