package config

import "fmt"

// Specification of requested engine execution mode.
type EngineMode int

const (
	EngineModeSameProcess EngineMode = iota
	EngineModeWorkerProcess
)

const (
	engineModeSameProcessName   = "same-process"
	engineModeWorkerProcessName = "worker-process"
)

func (m EngineMode) String() string {
	switch m {
	case EngineModeSameProcess:
		return engineModeSameProcessName
	case EngineModeWorkerProcess:
		return engineModeWorkerProcessName
	default:
		return fmt.Sprintf("EngineMode(%d)", int(m))
	}
}

// ParseEngineMode converts the textual mode name used in configuration and
// on the command line.
func ParseEngineMode(name string) (EngineMode, error) {
	switch name {
	case engineModeSameProcessName:
		return EngineModeSameProcess, nil
	case engineModeWorkerProcessName:
		return EngineModeWorkerProcess, nil
	default:
		return 0, fmt.Errorf("%s is not a valid EngineMode", name)
	}
}

func (m EngineMode) MarshalYAML() (interface{}, error) {
	return m.String(), nil
}

func (m *EngineMode) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var name string
	if err := unmarshal(&name); err != nil {
		return err
	}
	mode, err := ParseEngineMode(name)
	if err != nil {
		return err
	}
	*m = mode
	return nil
}
