package reporting

// SubmissionReference exposes submissionReference to external tests.
var SubmissionReference = submissionReference
