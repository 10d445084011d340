package packets

// body for logging in as admin
type LoginRequest struct {
	Password string `json:"password" binding:"required"`
}

// body for POST /api/audio/test; duration is in seconds
type TestAudioRequest struct {
	Volume   *int `json:"volume" binding:"omitempty,min=0,max=100"`
	Duration int  `json:"duration" binding:"omitempty,min=1,max=600"`
}
