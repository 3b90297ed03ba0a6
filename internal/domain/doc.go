// Package domain defines the core business entities and errors: jobs and
// their status lifecycle, detections produced by the inference engine,
// and registered users.
package domain
