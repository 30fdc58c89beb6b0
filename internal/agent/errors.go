package agent

import "errors"

var (
	ErrEpisodeRunning = errors.New("an episode is already running in this session")
	ErrEpisodePaused  = errors.New("the episode is paused; continue or stop it first")
	ErrNotPaused      = errors.New("the episode is not paused")
	ErrNotRunning     = errors.New("no episode is running")
	ErrEmptyMessage   = errors.New("message is empty")
)
