package gcrt

import "go.uber.org/zap"

// newLogger returns override if non-nil, otherwise a production zap
// logger tagged with the component name, matching the teacher's
// convention of building one zap.Logger per subsystem rather than
// relying on the global logger.
func newLogger(override *zap.Logger) (*zap.Logger, error) {
	if override != nil {
		return override.Named("gcrt"), nil
	}
	l, err := zap.NewProduction()
	if err != nil {
		return nil, err
	}
	return l.Named("gcrt"), nil
}
