package proto

import "encoding/json"

// MessageType is the wire tag of a message variant.
type MessageType string

// Client -> server.
const (
	TypeLogin           MessageType = "login"
	TypeListRooms       MessageType = "list_rooms"
	TypeListServerUsers MessageType = "list_server_users"
	TypeCreateRoom      MessageType = "create_room"
	TypeJoinRoom        MessageType = "join_room"
	TypeLeaveRoom       MessageType = "leave_room"
	TypeToggleAudio     MessageType = "toggle_audio"
	TypeToggleVideo     MessageType = "toggle_video"
	TypeMediaOffer      MessageType = "media_offer"
	TypeMediaAnswer     MessageType = "media_answer"
	TypeIceCandidate    MessageType = "ice_candidate"
	TypeSendMessage     MessageType = "send_message"
	TypeAudioData       MessageType = "audio_data"
	TypeKeyExchangeInit MessageType = "key_exchange_init"
)

// Server -> client.
const (
	TypeKeyExchangeResponse MessageType = "key_exchange_response"
	TypeLoginResponse       MessageType = "login_response"
	TypeRoomList            MessageType = "room_list"
	TypeServerUserList      MessageType = "server_user_list"
	TypeRoomCreated         MessageType = "room_created"
	TypeRoomJoined          MessageType = "room_joined"
	TypeRoomLeft            MessageType = "room_left"
	TypeParticipantJoined   MessageType = "participant_joined"
	TypeParticipantLeft     MessageType = "participant_left"
	TypeAudioToggled        MessageType = "audio_toggled"
	TypeVideoToggled        MessageType = "video_toggled"
	TypeMessageReceived     MessageType = "message_received"
	TypeAudioDataReceived   MessageType = "audio_data_received"
	TypeError               MessageType = "error"
)

// Message is implemented only by the variants in this package.
type Message interface {
	Type() MessageType
	sealed()
}

type Login struct {
	Username string `json:"username"`
}

type ListRooms struct{}

type ListServerUsers struct{}

type CreateRoom struct {
	Name            string  `json:"name"`
	MaxParticipants *uint32 `json:"max_participants"`
}

type JoinRoom struct {
	RoomID   string `json:"room_id"`
	Username string `json:"username"`
}

type LeaveRoom struct{}

type ToggleAudio struct {
	Enabled bool `json:"enabled"`
}

type ToggleVideo struct {
	Enabled bool `json:"enabled"`
}

// MediaOffer, MediaAnswer and IceCandidate are reserved for media
// negotiation. They are part of the wire contract but not processed.
type MediaOffer struct {
	TargetID string `json:"target_id"`
	SDP      string `json:"sdp"`
}

type MediaAnswer struct {
	TargetID string `json:"target_id"`
	SDP      string `json:"sdp"`
}

type IceCandidate struct {
	TargetID  string `json:"target_id"`
	Candidate string `json:"candidate"`
}

type SendMessage struct {
	Content string `json:"content"`
}

type AudioData struct {
	Data Bytes `json:"data"`
}

type KeyExchangeInit struct {
	PublicKey Bytes `json:"public_key"`
}

type KeyExchangeResponse struct {
	Ciphertext Bytes `json:"ciphertext"`
}

type LoginResponse struct {
	Success       bool    `json:"success"`
	ParticipantID *string `json:"participant_id"`
	Error         *string `json:"error"`
}

type RoomList struct {
	Rooms []RoomInfo `json:"rooms"`
}

type ServerUserList struct {
	Users []ServerUserInfo `json:"users"`
}

// A nil list still goes out as [], since decoders treat the field as required.
func (m RoomList) MarshalJSON() ([]byte, error) {
	type plain RoomList
	if m.Rooms == nil {
		m.Rooms = []RoomInfo{}
	}
	return json.Marshal(plain(m))
}

func (m ServerUserList) MarshalJSON() ([]byte, error) {
	type plain ServerUserList
	if m.Users == nil {
		m.Users = []ServerUserInfo{}
	}
	return json.Marshal(plain(m))
}

type RoomCreated struct {
	Success  bool    `json:"success"`
	RoomID   *string `json:"room_id"`
	RoomName *string `json:"room_name"`
	Error    *string `json:"error"`
}

type RoomJoined struct {
	Success      bool               `json:"success"`
	RoomID       *string            `json:"room_id"`
	RoomName     *string            `json:"room_name"`
	Participants *[]ParticipantInfo `json:"participants"`
	Error        *string            `json:"error"`
}

type RoomLeft struct {
	Success bool    `json:"success"`
	Error   *string `json:"error"`
}

type ParticipantJoined struct {
	ParticipantID string `json:"participant_id"`
	Username      string `json:"username"`
}

type ParticipantLeft struct {
	ParticipantID string `json:"participant_id"`
}

type AudioToggled struct {
	ParticipantID string `json:"participant_id"`
	Enabled       bool   `json:"enabled"`
}

type VideoToggled struct {
	ParticipantID string `json:"participant_id"`
	Enabled       bool   `json:"enabled"`
}

type MessageReceived struct {
	SenderID       string `json:"sender_id"`
	SenderUsername string `json:"sender_username"`
	Content        string `json:"content"`
	Timestamp      uint64 `json:"timestamp"`
}

type AudioDataReceived struct {
	SenderID string `json:"sender_id"`
	Data     Bytes  `json:"data"`
}

type Error struct {
	Message string `json:"message"`
}

type RoomInfo struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	Participants    uint32 `json:"participants"`
	MaxParticipants uint32 `json:"max_participants"`
	IsLocked        bool   `json:"is_locked"`
}

type ParticipantInfo struct {
	ID           string `json:"id"`
	Username     string `json:"username"`
	AudioEnabled bool   `json:"audio_enabled"`
	VideoEnabled bool   `json:"video_enabled"`
}

type ServerUserInfo struct {
	ID           string  `json:"id"`
	Username     string  `json:"username"`
	ConnectedAt  uint64  `json:"connected_at"`
	CurrentRoom  *string `json:"current_room"`
	AudioEnabled bool    `json:"audio_enabled"`
	VideoEnabled bool    `json:"video_enabled"`
}

func (*Login) Type() MessageType               { return TypeLogin }
func (*ListRooms) Type() MessageType           { return TypeListRooms }
func (*ListServerUsers) Type() MessageType     { return TypeListServerUsers }
func (*CreateRoom) Type() MessageType          { return TypeCreateRoom }
func (*JoinRoom) Type() MessageType            { return TypeJoinRoom }
func (*LeaveRoom) Type() MessageType           { return TypeLeaveRoom }
func (*ToggleAudio) Type() MessageType         { return TypeToggleAudio }
func (*ToggleVideo) Type() MessageType         { return TypeToggleVideo }
func (*MediaOffer) Type() MessageType          { return TypeMediaOffer }
func (*MediaAnswer) Type() MessageType         { return TypeMediaAnswer }
func (*IceCandidate) Type() MessageType        { return TypeIceCandidate }
func (*SendMessage) Type() MessageType         { return TypeSendMessage }
func (*AudioData) Type() MessageType           { return TypeAudioData }
func (*KeyExchangeInit) Type() MessageType     { return TypeKeyExchangeInit }
func (*KeyExchangeResponse) Type() MessageType { return TypeKeyExchangeResponse }
func (*LoginResponse) Type() MessageType       { return TypeLoginResponse }
func (*RoomList) Type() MessageType            { return TypeRoomList }
func (*ServerUserList) Type() MessageType      { return TypeServerUserList }
func (*RoomCreated) Type() MessageType         { return TypeRoomCreated }
func (*RoomJoined) Type() MessageType          { return TypeRoomJoined }
func (*RoomLeft) Type() MessageType            { return TypeRoomLeft }
func (*ParticipantJoined) Type() MessageType   { return TypeParticipantJoined }
func (*ParticipantLeft) Type() MessageType     { return TypeParticipantLeft }
func (*AudioToggled) Type() MessageType        { return TypeAudioToggled }
func (*VideoToggled) Type() MessageType        { return TypeVideoToggled }
func (*MessageReceived) Type() MessageType     { return TypeMessageReceived }
func (*AudioDataReceived) Type() MessageType   { return TypeAudioDataReceived }
func (*Error) Type() MessageType               { return TypeError }

func (*Login) sealed()               {}
func (*ListRooms) sealed()           {}
func (*ListServerUsers) sealed()     {}
func (*CreateRoom) sealed()          {}
func (*JoinRoom) sealed()            {}
func (*LeaveRoom) sealed()           {}
func (*ToggleAudio) sealed()         {}
func (*ToggleVideo) sealed()         {}
func (*MediaOffer) sealed()          {}
func (*MediaAnswer) sealed()         {}
func (*IceCandidate) sealed()        {}
func (*SendMessage) sealed()         {}
func (*AudioData) sealed()           {}
func (*KeyExchangeInit) sealed()     {}
func (*KeyExchangeResponse) sealed() {}
func (*LoginResponse) sealed()       {}
func (*RoomList) sealed()            {}
func (*ServerUserList) sealed()      {}
func (*RoomCreated) sealed()         {}
func (*RoomJoined) sealed()          {}
func (*RoomLeft) sealed()            {}
func (*ParticipantJoined) sealed()   {}
func (*ParticipantLeft) sealed()     {}
func (*AudioToggled) sealed()        {}
func (*VideoToggled) sealed()        {}
func (*MessageReceived) sealed()     {}
func (*AudioDataReceived) sealed()   {}
func (*Error) sealed()               {}

var constructors = map[MessageType]func() Message{
	TypeLogin:               func() Message { return &Login{} },
	TypeListRooms:           func() Message { return &ListRooms{} },
	TypeListServerUsers:     func() Message { return &ListServerUsers{} },
	TypeCreateRoom:          func() Message { return &CreateRoom{} },
	TypeJoinRoom:            func() Message { return &JoinRoom{} },
	TypeLeaveRoom:           func() Message { return &LeaveRoom{} },
	TypeToggleAudio:         func() Message { return &ToggleAudio{} },
	TypeToggleVideo:         func() Message { return &ToggleVideo{} },
	TypeMediaOffer:          func() Message { return &MediaOffer{} },
	TypeMediaAnswer:         func() Message { return &MediaAnswer{} },
	TypeIceCandidate:        func() Message { return &IceCandidate{} },
	TypeSendMessage:         func() Message { return &SendMessage{} },
	TypeAudioData:           func() Message { return &AudioData{} },
	TypeKeyExchangeInit:     func() Message { return &KeyExchangeInit{} },
	TypeKeyExchangeResponse: func() Message { return &KeyExchangeResponse{} },
	TypeLoginResponse:       func() Message { return &LoginResponse{} },
	TypeRoomList:            func() Message { return &RoomList{} },
	TypeServerUserList:      func() Message { return &ServerUserList{} },
	TypeRoomCreated:         func() Message { return &RoomCreated{} },
	TypeRoomJoined:          func() Message { return &RoomJoined{} },
	TypeRoomLeft:            func() Message { return &RoomLeft{} },
	TypeParticipantJoined:   func() Message { return &ParticipantJoined{} },
	TypeParticipantLeft:     func() Message { return &ParticipantLeft{} },
	TypeAudioToggled:        func() Message { return &AudioToggled{} },
	TypeVideoToggled:        func() Message { return &VideoToggled{} },
	TypeMessageReceived:     func() Message { return &MessageReceived{} },
	TypeAudioDataReceived:   func() Message { return &AudioDataReceived{} },
	TypeError:               func() Message { return &Error{} },
}

// Str returns a pointer to s, for the optional string fields.
func Str(s string) *string { return &s }

// NewError builds an Error message.
func NewError(msg string) *Error { return &Error{Message: msg} }
