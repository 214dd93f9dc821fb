package wire

// skipRegistry maps handler display names to channel patterns on which the
// handler must never run. Not safe for concurrent use; Wire guards it.
type skipRegistry struct {
	rules map[string][]channelPattern
}

func newSkipRegistry() *skipRegistry {
	return &skipRegistry{rules: make(map[string][]channelPattern)}
}

// add registers channel for name. Adding an existing pair is a no-op and
// returns false.
func (s *skipRegistry) add(name, channel string) bool {
	for _, rule := range s.rules[name] {
		if rule.channel == channel {
			return false
		}
	}

	s.rules[name] = append(s.rules[name], compilePattern(channel))
	return true
}

// skips reports whether the handler called name must be skipped on channel.
func (s *skipRegistry) skips(name, channel string) bool {
	for _, rule := range s.rules[name] {
		if rule.matches(channel) {
			return true
		}
	}
	return false
}

// channels returns the patterns registered for name, in insertion order.
func (s *skipRegistry) channels(name string) []string {
	rules := s.rules[name]
	if len(rules) == 0 {
		return nil
	}
	out := make([]string, len(rules))
	for i, rule := range rules {
		out[i] = rule.channel
	}
	return out
}
