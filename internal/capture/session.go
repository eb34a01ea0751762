package capture

// Session owns the devices of one client: one recorder and one camera.
type Session struct {
	Recorder *Recorder
	Camera   *CameraCapture
}

func NewSession(mic Microphone, camera Camera, decoder Decoder, opts ...RecorderOption) *Session {
	return &Session{
		Recorder: NewRecorder(mic, decoder, opts...),
		Camera:   NewCameraCapture(camera),
	}
}

// Close releases every device the session holds.
func (s *Session) Close() {
	if s == nil {
		return
	}
	if s.Recorder != nil {
		s.Recorder.Cancel()
	}
	if s.Camera != nil {
		s.Camera.Close()
	}
}

func (s *Session) Released() bool {
	return (s.Recorder == nil || s.Recorder.Released()) && (s.Camera == nil || s.Camera.Released())
}
