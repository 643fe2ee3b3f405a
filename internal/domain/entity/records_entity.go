package entity

import "time"

// ActivityLog is the record shape for user activity entries. Only the
// shape is part of the domain; writing and querying these records is
// left to consumers of the collection.
type ActivityLog struct {
	ID           string         `json:"-" firestore:"-"`
	Class        string         `json:"activityClass" firestore:"activityClass"`
	Type         string         `json:"activityType" firestore:"activityType"`
	OccurredAt   time.Time      `json:"activityDateTime" firestore:"activityDateTime"`
	UserID       string         `json:"userId" firestore:"userId"`
	DeviceID     string         `json:"deviceId,omitempty" firestore:"deviceId,omitempty"`
	ActivityInfo map[string]any `json:"activityInfo" firestore:"activityInfo"`
}

// Device identifies a household device registered to the platform.
type Device struct {
	ID       string `json:"-" firestore:"-"`
	Name     string `json:"deviceName" firestore:"deviceName"`
	Type     string `json:"deviceType" firestore:"deviceType"`
	Location string `json:"deviceLocation" firestore:"deviceLocation"`
}

// DeviceStatus is the last reported state of a device.
type DeviceStatus struct {
	DeviceID     string    `json:"deviceId" firestore:"deviceId"`
	BatteryState string    `json:"batteryState" firestore:"batteryState"`
	BatteryLevel int       `json:"batteryLevel" firestore:"batteryLevel"` // 0-100
	LastUpdate   time.Time `json:"lastUpdate" firestore:"lastUpdate"`
	IsOnline     bool      `json:"isOnline" firestore:"isOnline"`
}
