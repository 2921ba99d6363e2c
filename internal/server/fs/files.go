package fs

import (
	"errors"
	"sort"
	"sync"

	"github.com/GriffinCanCode/AgentOS/microkernel/internal/proto"
)

var (
	ErrNotFound = errors.New("file not found")
	ErrBadFD    = errors.New("bad file descriptor")
)

// FirstFD is the first descriptor handed out.
const FirstFD = 3

// FileInfo describes one file.
type FileInfo struct {
	Path string `json:"path"`
	Size int    `json:"size"`
	Open int    `json:"open"`
}

type file struct {
	data []byte
	refs int
}

type descriptor struct {
	owner  uint16
	path   string
	f      *file
	offset int
	append bool
}

// Store is an in-memory file tree addressed by full path. Descriptors belong
// to the address space that opened them.
type Store struct {
	mu     sync.Mutex
	files  map[string]*file
	fds    map[uint64]*descriptor
	nextFD uint64
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		files:  make(map[string]*file),
		fds:    make(map[uint64]*descriptor),
		nextFD: FirstFD,
	}
}

// Seed adds or replaces a file.
func (s *Store) Seed(path string, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[path] = &file{data: append([]byte(nil), data...)}
}

// Files lists every file ordered by path.
func (s *Store) Files() []FileInfo {
	s.mu.Lock()
	out := make([]FileInfo, 0, len(s.files))
	for path, f := range s.files {
		out = append(out, FileInfo{Path: path, Size: len(f.data), Open: f.refs})
	}
	s.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

// Open opens path for owner with proto.Open* flags.
func (s *Store) Open(owner uint16, path string, flags uint64) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, ok := s.files[path]
	if !ok {
		if flags&proto.OpenCreate == 0 {
			return 0, ErrNotFound
		}
		f = &file{}
		s.files[path] = f
	}
	if flags&proto.OpenTruncate != 0 {
		f.data = f.data[:0]
	}
	f.refs++

	fd := s.nextFD
	s.nextFD++
	s.fds[fd] = &descriptor{owner: owner, path: path, f: f, append: flags&proto.OpenAppend != 0}
	return fd, nil
}

func (s *Store) lookup(owner uint16, fd uint64) (*descriptor, error) {
	d, ok := s.fds[fd]
	if !ok || d.owner != owner {
		return nil, ErrBadFD
	}
	return d, nil
}

// Read returns up to n bytes at the descriptor's offset and advances it.
func (s *Store) Read(owner uint16, fd uint64, n int) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, err := s.lookup(owner, fd)
	if err != nil {
		return nil, err
	}
	if d.offset >= len(d.f.data) {
		return nil, nil
	}
	end := min(d.offset+n, len(d.f.data))
	out := append([]byte(nil), d.f.data[d.offset:end]...)
	d.offset = end
	return out, nil
}

// Write stores data at the descriptor's offset, or at the end of the file
// for append descriptors, and advances the offset.
func (s *Store) Write(owner uint16, fd uint64, data []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, err := s.lookup(owner, fd)
	if err != nil {
		return 0, err
	}
	if d.append {
		d.offset = len(d.f.data)
	}
	end := d.offset + len(data)
	if end > len(d.f.data) {
		grown := make([]byte, end)
		copy(grown, d.f.data)
		d.f.data = grown
	}
	copy(d.f.data[d.offset:], data)
	d.offset = end
	return len(data), nil
}

// Close releases fd.
func (s *Store) Close(owner uint16, fd uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, err := s.lookup(owner, fd)
	if err != nil {
		return err
	}
	d.f.refs--
	delete(s.fds, fd)
	return nil
}

// Stat returns the size of the file behind fd.
func (s *Store) Stat(owner uint16, fd uint64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, err := s.lookup(owner, fd)
	if err != nil {
		return 0, err
	}
	return len(d.f.data), nil
}

// Release closes every descriptor owned by owner and returns how many there
// were.
func (s *Store) Release(owner uint16) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for fd, d := range s.fds {
		if d.owner == owner {
			d.f.refs--
			delete(s.fds, fd)
			n++
		}
	}
	return n
}
