package session

import "sync"

// Accessor отдаёт текущий bearer-токен и личность пользователя.
// Ядро никогда не создаёт и не обновляет креды — только читает их
// непосредственно перед каждым сетевым вызовом, поэтому токен,
// ротированный посреди сессии, подхватывается на следующем запросе.
type Accessor interface {
	Token() (string, bool)
	UserID() string
}

// Memory — потокобезопасная реализация для хост-приложения и тестов.
type Memory struct {
	mu     sync.RWMutex
	token  string
	userID string
}

func NewMemory() *Memory { return &Memory{} }

func (m *Memory) Token() (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.token, m.token != ""
}

func (m *Memory) UserID() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.userID
}

func (m *Memory) SetToken(token, userID string) {
	m.mu.Lock()
	m.token = token
	m.userID = userID
	m.mu.Unlock()
}

// Clear сбрасывает сессию (логаут или принудительная реаутентификация).
func (m *Memory) Clear() {
	m.mu.Lock()
	m.token = ""
	m.userID = ""
	m.mu.Unlock()
}
