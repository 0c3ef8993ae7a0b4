/*
Package config provides layered configuration for the navigation engine.

Configuration is resolved in order of precedence: built-in defaults, a
YAML file, then PRENAV_* environment variables. Validate catches
inconsistent settings (signal weights summing past one, decay factors
outside (0,1)) before any component is constructed.
*/
package config
