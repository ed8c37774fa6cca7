//go:build darwin

package presence

const chromeTabScript = `
tell application "System Events"
    if not (exists process "Google Chrome") then return ""
end tell
tell application "Google Chrome"
    repeat with w in windows
        repeat with t in tabs of w
            set u to URL of t
            if u contains "meet.google.com" then
                if not (title of t contains "ended") then return "Google Meet"
            end if
            if u contains "teams.microsoft.com" then return "Microsoft Teams"
            if u contains "app.huddle.team" then return "Huddle"
            if u contains "zoom.us/j/" then return "Zoom"
        end repeat
    end repeat
end tell
return ""
`

const safariTabScript = `
tell application "System Events"
    if not (exists process "Safari") then return ""
end tell
tell application "Safari"
    repeat with w in windows
        try
            set u to URL of current tab of w
            if u contains "meet.google.com" then return "Google Meet"
            if u contains "teams.microsoft.com" then return "Microsoft Teams"
        end try
    end repeat
end tell
return ""
`

func browserScripts() []string { return []string{chromeTabScript, safariTabScript} }
