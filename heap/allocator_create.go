package heap

import (
	"fmt"
	"strings"

	"github.com/dolthub/swiss"
	"github.com/vkngwrapper/heapalloc/internal/utils"
	"github.com/vkngwrapper/heapalloc/memutils/metadata"
	"github.com/vkngwrapper/heapalloc/memutils/segment"
	"golang.org/x/exp/slog"
)

// CreateFlags indicate specific allocator behaviors to activate or deactivate
type CreateFlags int32

var allocatorCreateFlagsMapping = map[CreateFlags]string{}

func (f CreateFlags) Register(str string) {
	allocatorCreateFlagsMapping[f] = str
}

func (f CreateFlags) String() string {
	if f == 0 {
		return "None"
	}

	var names []string
	for bit := 0; bit < 31; bit++ {
		flag := CreateFlags(1) << bit
		if f&flag == 0 {
			continue
		}

		name, ok := allocatorCreateFlagsMapping[flag]
		if !ok {
			name = fmt.Sprintf("CreateFlags(%#x)", int32(flag))
		}
		names = append(names, name)
	}

	return strings.Join(names, "|")
}

const (
	// AllocatorCreateExternallySynchronized ensures that this allocator will not be synchronized
	// internally. The consumer must guarantee it is used from only one goroutine at a time or is
	// synchronized by some other mechanism.
	AllocatorCreateExternallySynchronized CreateFlags = 1 << iota
)

func init() {
	AllocatorCreateExternallySynchronized.Register("AllocatorCreateExternallySynchronized")
}

const initialLiveAllocations uint32 = 64

// CreateOptions contains optional settings when creating an allocator
type CreateOptions struct {
	// Flags indicates specific allocator behaviors to activate or deactivate
	Flags CreateFlags
	// Spin replaces the internal sync.Mutex with a lock that spins and yields the processor
	// between attempts. It has no effect alongside AllocatorCreateExternallySynchronized.
	Spin bool
}

// New creates an Allocator that serves memory out of seg. The segment must not be grown by
// anything else while the allocator is in use.
func New(logger *slog.Logger, seg segment.Segment, options CreateOptions) (*Allocator, error) {
	if seg == nil {
		return nil, ErrNoSegment
	}
	if logger == nil {
		logger = slog.Default()
	}

	allocator := &Allocator{
		logger:      logger,
		createFlags: options.Flags,
		segment:     seg,
		blocks:      metadata.NewBlockList(seg),
		live:        swiss.NewMap[uintptr, uintptr](initialLiveAllocations),
	}

	allocator.mutex.UseMutex = options.Flags&AllocatorCreateExternallySynchronized == 0
	if options.Spin {
		allocator.mutex.Mutex = &utils.SpinMutex{}
	}

	logger.Debug("Allocator::New", slog.String("flags", options.Flags.String()), slog.Bool("spin", options.Spin))
	return allocator, nil
}
