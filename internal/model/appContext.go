package model

type contextKey string

const (
	ContextAppName      contextKey = "appName"
	ContextAppVersion   contextKey = "appVersion"
	ContextConfigFile   contextKey = "configFile"
	ContextPrintersFile contextKey = "printersFile"
)
