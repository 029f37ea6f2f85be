// Package authweb serves the email and password pages of a web application:
// registration, login and password reset. Every account operation is
// delegated to an IdentityProvider; the package never stores credentials.
//
// Forms:
//   - Each form is driven by a FormMachine (idle, submitting, succeeded,
//     failed). Input is validated locally before any provider call, and a
//     form that is submitting rejects a second submission.
//   - LoginController owns the sign in form, the password reset form and the
//     password visibility toggle. RegisterController creates the account and
//     then runs the profile update and the verification email concurrently.
//     A failed profile update does not undo the registration.
//
// HTTP:
//   - RegisterAuthRoutes mounts the pages on a go-router Router. Immediate
//     navigation becomes a 303 redirect carrying a flash message, delayed
//     navigation a Refresh header. SubmissionGuard rejects duplicate posts
//     of the same rendered form across requests.
//
// Activity sinks:
//   - ActivitySink receives a best effort event for every form outcome.
//     MetricsSink counts them for prometheus, repository.ActivityStore keeps
//     them in sqlite and activitymap.LogSink writes them to the log. Events
//     never carry passwords, tokens or full email addresses.
package authweb
