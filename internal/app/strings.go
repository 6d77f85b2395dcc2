package app

// User-facing copy for the app home and notifications, kept in one place so
// it can be edited without touching rendering logic.

const (
	headerText = "Welcome to the volunteer token system!"

	explainerText = "This system allows you to track the time you've volunteered for the organisation and your progress towards specific rewards. Your contribution towards making the Artifactory the place it is and is greatly appreciated!"

	unrecognisedText = "Unfortunately I don't recognise you. This system is only available to members, if you think this is a mistake please contact #it."

	hoursSummaryText = "You volunteered *%vh* last month and *%vh* so far this month. All up you've volunteered *%vh*, thank you!"

	noActiveRewardsText = "Unfortunately there are no active reward tiers recorded for you last month. (Remember: physical tokens are processed manually so may take a few days to appear here)"

	adminExplainerText = "As an admin you have some extra tools available to you below. Please use them responsibly."

	addHoursExplainerText = "Use this form to add hours to volunteers. Remember, if they also put a token in the box the time will be counted twice!"

	claimedNoteText = "Already claimed :white_check_mark:"
)
