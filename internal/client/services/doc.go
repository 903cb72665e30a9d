// Package services holds the device's application services: the record
// façade (LocationService) that picks the online or offline path per call,
// authentication (AuthService) and user administration (UserService).
package services
