package domain

import "errors"

var (
	ErrRoomNotFound   = errors.New("room not found")
	ErrRoomFull       = errors.New("room is full")
	ErrAlreadyJoined  = errors.New("connection already joined a room")
	ErrNotInRoom      = errors.New("connection not in the room")
	ErrNotAppointment = errors.New("room is not an appointment")
)
