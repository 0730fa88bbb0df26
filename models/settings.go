package models

import "slices"

// HorizonChoices are the look-ahead horizons, in hours, a user may pick.
var HorizonChoices = []int{24, 48, 72}

type AlertSettings struct {
	NotifyBefore  int  `json:"notifyBefore"`
	EnableMorning bool `json:"enableMorning"`
	EnableEvening bool `json:"enableEvening"`
}

func DefaultAlertSettings() AlertSettings {
	return AlertSettings{
		NotifyBefore:  24,
		EnableMorning: true,
		EnableEvening: true,
	}
}

func (a AlertSettings) ValidHorizon() bool {
	return slices.Contains(HorizonChoices, a.NotifyBefore)
}
