package model

import (
	"github.com/google/uuid"

	"github.com/mrjoshuak/nlecore/internal/cmderr"
	"github.com/mrjoshuak/nlecore/internal/rational"
	"github.com/mrjoshuak/nlecore/internal/store"
)

// Media is the §3 Media entity: the probed facts about one imported file.
// Duration is the authoritative media boundary used in ripple-out limits
// (§4.10 Phase 4, "Media tail").
type Media struct {
	ID        string
	ProjectID string
	Path      string
	HasVideo  bool
	HasAudio  bool
	Duration  rational.Time
	Video     *VideoStreamInfo
	Audio     *AudioStreamInfo
}

// VideoStreamInfo describes the video stream layout of a Media.
type VideoStreamInfo struct {
	Width     int
	Height    int
	FrameRate rational.Time // frame rate expressed as frames(=1)@num/den
}

// AudioStreamInfo describes the audio stream layout of a Media.
type AudioStreamInfo struct {
	SampleRate int
	Channels   int
}

// LoadMedia loads a media record by id, returning *cmderr.EntityNotFound if
// absent.
func LoadMedia(g *store.Gateway, id string) (*Media, error) {
	m, err := LoadMediaOptional(g, id)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, &cmderr.EntityNotFound{Kind: "media", ID: id}
	}
	return m, nil
}

// LoadMediaOptional loads a media record by id, returning (nil, nil) if
// absent.
func LoadMediaOptional(g *store.Gateway, id string) (*Media, error) {
	stmt, err := g.Prepare(`SELECT id, project_id, path, has_video, has_audio, duration_value,
		duration_num, duration_den, video_width, video_height, frame_rate_num, frame_rate_den,
		sample_rate, channels FROM media WHERE id = ?`)
	if err != nil {
		return nil, err
	}
	defer stmt.Finalize()
	stmt.Bind(1, id)

	has, err := stmt.Next()
	if err != nil {
		return nil, err
	}
	if !has {
		return nil, nil
	}

	var (
		m                                          Media
		hasVideo, hasAudio                         int64
		durVal, durNum, durDen                     int64
		vw, vh, frNum, frDen, sampleRate, channels int64
	)
	_ = stmt.Value(0, &m.ID)
	_ = stmt.Value(1, &m.ProjectID)
	_ = stmt.Value(2, &m.Path)
	_ = stmt.Value(3, &hasVideo)
	_ = stmt.Value(4, &hasAudio)
	_ = stmt.Value(5, &durVal)
	_ = stmt.Value(6, &durNum)
	_ = stmt.Value(7, &durDen)
	_ = stmt.Value(8, &vw)
	_ = stmt.Value(9, &vh)
	_ = stmt.Value(10, &frNum)
	_ = stmt.Value(11, &frDen)
	_ = stmt.Value(12, &sampleRate)
	_ = stmt.Value(13, &channels)

	m.HasVideo = hasVideo != 0
	m.HasAudio = hasAudio != 0
	m.Duration = rational.New(durVal, uint32(durNum), uint32(durDen))
	if m.HasVideo {
		m.Video = &VideoStreamInfo{Width: int(vw), Height: int(vh), FrameRate: rational.New(1, uint32(frNum), uint32(frDen))}
	}
	if m.HasAudio {
		m.Audio = &AudioStreamInfo{SampleRate: int(sampleRate), Channels: int(channels)}
	}
	return &m, nil
}

// Save inserts or updates the media record.
func (m *Media) Save(g *store.Gateway) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	var vw, vh, frNum, frDen int64
	if m.Video != nil {
		vw, vh = int64(m.Video.Width), int64(m.Video.Height)
		frNum, frDen = int64(m.Video.FrameRate.Num), int64(m.Video.FrameRate.Den)
	} else {
		frDen = 1
	}
	var sampleRate, channels int64
	if m.Audio != nil {
		sampleRate, channels = int64(m.Audio.SampleRate), int64(m.Audio.Channels)
	}

	stmt, err := g.Prepare(`INSERT INTO media (id, project_id, path, has_video, has_audio,
		duration_value, duration_num, duration_den, video_width, video_height, frame_rate_num,
		frame_rate_den, sample_rate, channels)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET path=excluded.path, has_video=excluded.has_video,
			has_audio=excluded.has_audio, duration_value=excluded.duration_value,
			duration_num=excluded.duration_num, duration_den=excluded.duration_den,
			video_width=excluded.video_width, video_height=excluded.video_height,
			frame_rate_num=excluded.frame_rate_num, frame_rate_den=excluded.frame_rate_den,
			sample_rate=excluded.sample_rate, channels=excluded.channels`)
	if err != nil {
		return err
	}
	defer stmt.Finalize()
	stmt.Bind(1, m.ID)
	stmt.Bind(2, m.ProjectID)
	stmt.Bind(3, m.Path)
	stmt.Bind(4, boolToInt(m.HasVideo))
	stmt.Bind(5, boolToInt(m.HasAudio))
	stmt.Bind(6, m.Duration.Frames)
	stmt.Bind(7, int64(m.Duration.Num))
	stmt.Bind(8, int64(m.Duration.Den))
	stmt.Bind(9, vw)
	stmt.Bind(10, vh)
	stmt.Bind(11, frNum)
	stmt.Bind(12, frDen)
	stmt.Bind(13, sampleRate)
	stmt.Bind(14, channels)
	_, err = stmt.Exec()
	return err
}

// Delete removes the media record.
func (m *Media) Delete(g *store.Gateway) error {
	stmt, err := g.Prepare(`DELETE FROM media WHERE id = ?`)
	if err != nil {
		return err
	}
	defer stmt.Finalize()
	stmt.Bind(1, m.ID)
	_, err = stmt.Exec()
	return err
}
