package interaction

import (
	"io"
	"os"
)

// KeyEvent represents a keyboard event
type KeyEvent struct {
	Key  rune
	Type KeyType
}

// KeyType represents the type of key pressed
type KeyType int

const (
	KeyChar KeyType = iota
	KeyEscape
)

// Action is what a key does in the live view.
type Action int

const (
	ActionNone Action = iota
	ActionQuit
	ActionRefresh
	ActionToggleOverflow
	ActionToggleHelp
)

// KeyboardReader handles keyboard input in raw mode
type KeyboardReader struct {
	in       io.Reader
	oldState *termState
	input    chan KeyEvent
	stop     chan struct{}
}

// NewKeyboardReader puts stdin into raw mode and starts reading keys.
func NewKeyboardReader() (*KeyboardReader, error) {
	kr := newKeyboardReader(os.Stdin)
	if err := kr.enableRawMode(); err != nil {
		return nil, err
	}
	go kr.readInput()
	return kr, nil
}

func newKeyboardReader(in io.Reader) *KeyboardReader {
	return &KeyboardReader{
		in:    in,
		input: make(chan KeyEvent, 10),
		stop:  make(chan struct{}),
	}
}

// readInput reads keyboard input in a goroutine
func (kr *KeyboardReader) readInput() {
	buf := make([]byte, 3)

	for {
		select {
		case <-kr.stop:
			return
		default:
		}

		n, err := kr.in.Read(buf)
		if err != nil {
			if err == io.EOF {
				return
			}
			continue
		}

		event := kr.parseInput(buf[:n])
		if event == nil {
			continue
		}
		select {
		case kr.input <- *event:
		case <-kr.stop:
			return
		}
	}
}

// parseInput parses raw keyboard input
func (kr *KeyboardReader) parseInput(buf []byte) *KeyEvent {
	if len(buf) == 0 {
		return nil
	}

	// Handle Ctrl+C
	if buf[0] == 3 {
		return &KeyEvent{Key: 3, Type: KeyChar}
	}

	// A lone ESC; arrow keys and other sequences are ignored.
	if buf[0] == 27 {
		if len(buf) == 1 {
			return &KeyEvent{Key: 27, Type: KeyEscape}
		}
		return nil
	}

	return &KeyEvent{Key: rune(buf[0]), Type: KeyChar}
}

// Events returns the keyboard event channel
func (kr *KeyboardReader) Events() <-chan KeyEvent {
	return kr.input
}

// Close stops the keyboard reader and restores terminal
func (kr *KeyboardReader) Close() error {
	close(kr.stop)
	return kr.disableRawMode()
}

// ActionFor maps a key to its action.
func ActionFor(ev KeyEvent) Action {
	if ev.Type == KeyEscape {
		return ActionQuit
	}
	switch ev.Key {
	case 'q', 'Q', 3:
		return ActionQuit
	case 'r', 'R':
		return ActionRefresh
	case 'e', 'E', ' ':
		return ActionToggleOverflow
	case 'h', 'H', '?':
		return ActionToggleHelp
	default:
		return ActionNone
	}
}
