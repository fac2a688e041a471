package flow

import (
	"sync"
	"time"

	"github.com/ticketdrop/ticketdrop/internal/config"
)

// NonceStore keeps the verification nonce of the authorization in progress.
// At most one nonce is pending; Save replaces any earlier one.
type NonceStore interface {
	Save(nonce string) error
	Load() (string, error)
	Clear() error
}

// MemoryNonceStore keeps the nonce in process memory. It suits the HTTP
// service and tests, where the whole handshake happens in one process.
type MemoryNonceStore struct {
	mu    sync.Mutex
	nonce string
}

func (s *MemoryNonceStore) Save(nonce string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nonce = nonce
	return nil
}

func (s *MemoryNonceStore) Load() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nonce, nil
}

func (s *MemoryNonceStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nonce = ""
	return nil
}

// FileNonceStore keeps the nonce in the CLI state file so that
// `ticketdrop auth url` and a later callback can be separate invocations.
type FileNonceStore struct {
	Path string
}

func (s *FileNonceStore) Save(nonce string) error {
	st, err := config.LoadState(s.Path)
	if err != nil {
		return err
	}
	st.PendingNonce = nonce
	st.NonceIssued = time.Now().UTC()
	return config.SaveState(s.Path, st)
}

func (s *FileNonceStore) Load() (string, error) {
	st, err := config.LoadState(s.Path)
	if err != nil {
		return "", err
	}
	return st.PendingNonce, nil
}

func (s *FileNonceStore) Clear() error {
	st, err := config.LoadState(s.Path)
	if err != nil {
		return err
	}
	st.PendingNonce = ""
	st.NonceIssued = time.Time{}
	return config.SaveState(s.Path, st)
}
