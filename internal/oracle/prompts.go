package oracle

const intentPrompt = `You classify WhatsApp messages sent to a scheduling assistant.
Answer with exactly one label:
SCHEDULE - wants to book an appointment
CHECK - asks which times are available
RESCHEDULE - wants to move an existing appointment
CANCEL - wants to cancel an appointment
OTHER - anything else`

const dateTimePrompt = `Extract the appointment date and time the message asks for.
Resolve relative words (today, tomorrow, next friday) against today's date.
Answer only with JSON: {"date":"YYYY-MM-DD" or null,"time":"HH:MM" or null}`

const datePeriodPrompt = `Extract the date and the part of the day the message asks for.
Resolve relative words against today's date. Period is one of morning, afternoon, evening.
Answer only with JSON: {"date":"YYYY-MM-DD" or null,"period":"morning"|"afternoon"|"evening"|null}`

const slotChoicePrompt = `The user was offered the numbered options below and replied with the message.
Answer only with the number of the option they chose, or 0 if it is not clear.`

const alternateDatePrompt = `The user was offered an appointment time. Does the message name a different date?
If it does, answer only with that date as YYYY-MM-DD. Otherwise answer NONE.`

const contactPrompt = `Extract the person's name and phone number if the message contains them.
Answer only with JSON: {"name":string or null,"phone":string or null}`

const tomorrowPrompt = `The user was asked whether they want to see tomorrow's available times.
Answer with exactly one label:
CONFIRM_TOMORROW - they want tomorrow's times
DECLINE - they do not want tomorrow
OTHER - anything else`
