// Package track implements the Track Manager (spec.md §4.9): the current
// video/audio/subtitle selection over a demuxer's enumerated streams, and
// the observer notifications that drive the controller's flush/reconfigure
// cycle on selection change.
package track

import (
	"github.com/mediacore/playback/internal/demux"
	"github.com/mediacore/playback/internal/observer"
)

// Selection describes which track id (demux.StreamInfo.Index) is active
// for each kind. SubtitleID is nil when subtitles are off.
type Selection struct {
	VideoID    int
	AudioID    int
	SubtitleID *int
}

// Manager holds the demuxer's enumerated tracks and the current selection
// (spec.md §4.9).
type Manager struct {
	tracks []demux.StreamInfo
	sel    Selection

	TracksChange        *observer.List[[]demux.StreamInfo]
	AudioTrackChange    *observer.List[demux.StreamInfo]
	SubtitleTrackChange *observer.List[*demux.StreamInfo]
}

// New constructs an empty Manager.
func New() *Manager {
	return &Manager{
		TracksChange:        observer.NewList[[]demux.StreamInfo](),
		AudioTrackChange:    observer.NewList[demux.StreamInfo](),
		SubtitleTrackChange: observer.NewList[*demux.StreamInfo](),
	}
}

// SetTracks registers the demuxer's enumerated tracks and applies the
// load-time selection policy (spec.md §4.9): first video track active,
// first audio track active, subtitles off.
func (m *Manager) SetTracks(tracks []demux.StreamInfo) {
	m.tracks = tracks
	m.sel = Selection{VideoID: -1, AudioID: -1, SubtitleID: nil}

	for _, t := range tracks {
		switch t.Kind {
		case demux.StreamVideo:
			if m.sel.VideoID == -1 {
				m.sel.VideoID = t.Index
			}
		case demux.StreamAudio:
			if m.sel.AudioID == -1 {
				m.sel.AudioID = t.Index
			}
		}
	}
	m.TracksChange.Emit(tracks)
}

// Tracks returns the last-registered stream list.
func (m *Manager) Tracks() []demux.StreamInfo { return append([]demux.StreamInfo(nil), m.tracks...) }

func (m *Manager) find(id int) (demux.StreamInfo, bool) {
	for _, t := range m.tracks {
		if t.Index == id {
			return t, true
		}
	}
	return demux.StreamInfo{}, false
}

// ActiveVideo returns the currently selected video track, if any.
func (m *Manager) ActiveVideo() (demux.StreamInfo, bool) {
	if m.sel.VideoID < 0 {
		return demux.StreamInfo{}, false
	}
	return m.find(m.sel.VideoID)
}

// ActiveAudio returns the currently selected audio track, if any.
func (m *Manager) ActiveAudio() (demux.StreamInfo, bool) {
	if m.sel.AudioID < 0 {
		return demux.StreamInfo{}, false
	}
	return m.find(m.sel.AudioID)
}

// ActiveSubtitle returns the currently selected subtitle track, if any.
func (m *Manager) ActiveSubtitle() (demux.StreamInfo, bool) {
	if m.sel.SubtitleID == nil {
		return demux.StreamInfo{}, false
	}
	return m.find(*m.sel.SubtitleID)
}

// SelectVideo switches the active video track, notifying observers. The
// controller is expected to flush and reconfigure the video decoder in
// response (spec.md §4.9); this package only tracks selection state.
func (m *Manager) SelectVideo(id int) {
	if _, ok := m.find(id); !ok {
		return
	}
	m.sel.VideoID = id
	m.TracksChange.Emit(m.Tracks())
}

// SelectAudio switches the active audio track, notifying observers.
func (m *Manager) SelectAudio(id int) {
	t, ok := m.find(id)
	if !ok {
		return
	}
	m.sel.AudioID = id
	m.AudioTrackChange.Emit(t)
}

// SelectSubtitle switches the active subtitle track, or disables subtitles
// entirely when id is nil.
func (m *Manager) SelectSubtitle(id *int) {
	if id == nil {
		m.sel.SubtitleID = nil
		m.SubtitleTrackChange.Emit(nil)
		return
	}
	t, ok := m.find(*id)
	if !ok {
		return
	}
	sel := *id
	m.sel.SubtitleID = &sel
	m.SubtitleTrackChange.Emit(&t)
}
