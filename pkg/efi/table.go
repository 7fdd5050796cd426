// pkg/efi/table.go
package efi

import (
	"fmt"
	"sync"
)

// Phase is the boot-services epoch a table belongs to.
type Phase uint8

const (
	// PreExit is the initial phase: boot services are available.
	PreExit Phase = iota
	// PostExit is terminal: only runtime services remain.
	PostExit
)

func (p Phase) String() string {
	switch p {
	case PreExit:
		return "pre-exit"
	case PostExit:
		return "post-exit"
	default:
		return fmt.Sprintf("phase(%d)", uint8(p))
	}
}

// systemTable is the state shared by the boot and runtime views of the same
// firmware entry table.
type systemTable struct {
	fw Firmware

	mu      sync.Mutex
	phase   Phase
	hooks   []func()
	hooked  bool
	exiting bool
}

// BootTable is the system table while boot services are available. It is the
// only way to locate and open protocols.
//
// A BootTable retained after ExitBootServices keeps compiling but every
// boot-phase capability fails with ErrBootServicesExited.
type BootTable struct {
	st *systemTable
}

// RuntimeTable is the system table after ExitBootServices.
type RuntimeTable struct {
	st *systemTable
}

// NewBootTable wraps the entry references. It does not take ownership of any
// firmware memory.
func NewBootTable(fw Firmware) (*BootTable, error) {
	if fw.Invoker == nil {
		return nil, fmt.Errorf("efi: firmware invoker is required")
	}
	if fw.Boot == nil {
		return nil, fmt.Errorf("efi: boot services are required")
	}

	return &BootTable{st: &systemTable{fw: fw}}, nil
}

// Phase returns the current phase of the underlying system table.
func (t *BootTable) Phase() Phase {
	t.st.mu.Lock()
	defer t.st.mu.Unlock()
	return t.st.phase
}

func (t *BootTable) checkBoot() error {
	if t.Phase() != PreExit {
		return ErrBootServicesExited
	}
	return nil
}

// BootServices returns the boot services reference.
func (t *BootTable) BootServices() (BootServices, error) {
	if err := t.checkBoot(); err != nil {
		return nil, err
	}
	return t.st.fw.Boot, nil
}

// ConOut returns the console text output, if the firmware provided one.
func (t *BootTable) ConOut() (TextOutput, error) {
	if err := t.checkBoot(); err != nil {
		return nil, err
	}
	return t.st.fw.ConOut, nil
}

// Runtime returns the runtime services, which stay valid in both phases.
func (t *BootTable) Runtime() RuntimeServices {
	return t.st.fw.Runtime
}

// OnExit registers fn to run immediately before the firmware transition.
// Hooks run once, newest first.
func (t *BootTable) OnExit(fn func()) error {
	t.st.mu.Lock()
	defer t.st.mu.Unlock()

	if t.st.phase != PreExit || t.st.hooked {
		return ErrBootServicesExited
	}

	t.st.hooks = append(t.st.hooks, fn)
	return nil
}

// ExitBootServices runs the exit hooks and then asks firmware to terminate
// boot services. On success the returned RuntimeTable is the only valid view
// of the system table.
//
// Hooks run exactly once even if firmware refuses the transition; in that
// case the table stays PreExit and the call may be repeated. A call made
// while another is still in progress fails with ErrExitInProgress.
func (t *BootTable) ExitBootServices() (*RuntimeTable, error) {
	t.st.mu.Lock()
	if t.st.phase != PreExit {
		t.st.mu.Unlock()
		return nil, ErrBootServicesExited
	}
	if t.st.exiting {
		t.st.mu.Unlock()
		return nil, ErrExitInProgress
	}
	t.st.exiting = true

	var hooks []func()
	if !t.st.hooked {
		hooks = t.st.hooks
		t.st.hooks = nil
		t.st.hooked = true
	}
	t.st.mu.Unlock()

	for i := len(hooks) - 1; i >= 0; i-- {
		hooks[i]()
	}

	err := t.st.fw.Boot.ExitBootServices()

	t.st.mu.Lock()
	t.st.exiting = false
	if err == nil {
		t.st.phase = PostExit
	}
	t.st.mu.Unlock()

	if err != nil {
		return nil, fmt.Errorf("failed to exit boot services: %w", err)
	}

	return &RuntimeTable{st: t.st}, nil
}

// Phase always reports PostExit.
func (t *RuntimeTable) Phase() Phase {
	return PostExit
}

// Runtime returns the runtime services.
func (t *RuntimeTable) Runtime() RuntimeServices {
	return t.st.fw.Runtime
}
