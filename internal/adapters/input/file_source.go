package input

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/nxadm/tail"
	"github.com/rs/zerolog/log"
)

// FileLineSource reads an access log from the beginning to end of file once.
// It uses tail in non-follow mode, so the line channel closes at EOF.
type FileLineSource struct {
	filepath   string
	bufferSize int
	tail       *tail.Tail
	mu         sync.Mutex
	running    bool
	stopChan   chan struct{}
}

func NewFileLineSource(filepath string, bufferSize int) *FileLineSource {
	if bufferSize <= 0 {
		bufferSize = 1000
	}
	return &FileLineSource{
		filepath:   filepath,
		bufferSize: bufferSize,
		stopChan:   make(chan struct{}),
	}
}

// Open checks that the file exists and is readable before the run starts.
func (s *FileLineSource) Open() error {
	f, err := os.Open(s.filepath)
	if err != nil {
		return fmt.Errorf("open access log: %w", err)
	}
	return f.Close()
}

func (s *FileLineSource) Start(ctx context.Context) (<-chan string, <-chan error) {
	lineChan := make(chan string, s.bufferSize)
	errChan := make(chan error, 10)

	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		close(lineChan)
		close(errChan)
		return lineChan, errChan
	}
	s.running = true
	s.stopChan = make(chan struct{})
	s.mu.Unlock()

	go func() {
		defer close(lineChan)
		defer close(errChan)

		config := tail.Config{
			Follow:    false,
			ReOpen:    false,
			MustExist: true,
			Logger:    tail.DiscardingLogger,
			Location:  &tail.SeekInfo{Offset: 0, Whence: 0},
		}

		t, err := tail.TailFile(s.filepath, config)
		if err != nil {
			log.Error().Err(err).Str("file", s.filepath).Msg("Failed to open access log")
			errChan <- err
			return
		}
		s.mu.Lock()
		s.tail = t
		s.mu.Unlock()
		defer t.Cleanup()

		log.Debug().Str("file", s.filepath).Msg("Reading access log")

		for {
			select {
			case <-ctx.Done():
				return
			case <-s.stopChan:
				return
			case line, ok := <-t.Lines:
				if !ok {
					return
				}
				if line.Err != nil {
					log.Warn().Err(line.Err).Msg("Error reading line")
					select {
					case errChan <- line.Err:
					default:
					}
					continue
				}

				select {
				case lineChan <- strings.TrimSuffix(line.Text, "\r"):
				case <-ctx.Done():
					return
				case <-s.stopChan:
					return
				}
			}
		}
	}()

	return lineChan, errChan
}

func (s *FileLineSource) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}

	close(s.stopChan)
	s.running = false

	if s.tail != nil {
		return s.tail.Stop()
	}
	return nil
}
